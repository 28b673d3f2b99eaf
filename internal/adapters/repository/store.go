// Package repository persists aggregate temperature records in a SQL
// database. SQLite and PostgreSQL are supported through sqlx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/okian/thermo/internal/domain/model"
	"github.com/okian/thermo/pkg/metrics"
)

// Store provides read/write access to aggregate records.
type Store interface {
	// Insert appends rows in one transaction. Existing (city, year) pairs are
	// not merged.
	Insert(ctx context.Context, rows []model.AggregateTemperature) error

	// Query returns one page of records matching f, ordered by id.
	Query(ctx context.Context, f model.Filter, page, pageSize int) (model.Page, error)

	// GetByID returns ErrNotFound if no record has the id.
	GetByID(ctx context.Context, id int64) (model.AggregateTemperature, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// SQLStore implements Store on an injected connection pool.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a store on db. The schema must already exist; see
// EnsureSchema.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const selectColumns = "id, city, year, avg_temperature"

// Insert appends rows in a single transaction.
func (s *SQLStore) Insert(ctx context.Context, rows []model.AggregateTemperature) (err error) {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreInsert(time.Since(start)) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(
		"INSERT INTO "+tableName+" (city, year, avg_temperature) VALUES (?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, r.City, r.Year, r.AvgTemperature); err != nil {
			return fmt.Errorf("insert %s/%d: %w", r.City, r.Year, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// Query returns page (1-based) of records matching f. City matches as a
// case-insensitive substring; year matches exactly; zero values do not
// filter. TotalPages is zero when nothing matches.
func (s *SQLStore) Query(ctx context.Context, f model.Filter, page, pageSize int) (model.Page, error) {
	if page < 1 || pageSize < 1 {
		return model.Page{}, ErrInvalidPage
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQuery(time.Since(start)) }()

	where, args := whereClause(f)

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM "+tableName+where), args...); err != nil {
		return model.Page{}, fmt.Errorf("count records: %w", err)
	}

	data := make([]model.AggregateTemperature, 0, pageSize)
	query := s.db.Rebind("SELECT " + selectColumns + " FROM " + tableName + where + " ORDER BY id LIMIT ? OFFSET ?")
	if err := s.db.SelectContext(ctx, &data, query, append(args, pageSize, (page-1)*pageSize)...); err != nil {
		return model.Page{}, fmt.Errorf("query records: %w", err)
	}

	return model.Page{
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
		Data:       data,
	}, nil
}

func whereClause(f model.Filter) (string, []any) {
	var conds []string
	var args []any
	if city := strings.TrimSpace(f.City); city != "" {
		// Both sides fold in SQL so a stored name always matches itself.
		conds = append(conds, `LOWER(city) LIKE LOWER(?) ESCAPE '\'`)
		args = append(args, "%"+escapeLike(city)+"%")
	}
	if f.Year != 0 {
		conds = append(conds, "year = ?")
		args = append(args, f.Year)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`) //nolint:gochecknoglobals // stateless

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// GetByID returns the record with id.
func (s *SQLStore) GetByID(ctx context.Context, id int64) (model.AggregateTemperature, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQuery(time.Since(start)) }()

	var rec model.AggregateTemperature
	err := s.db.GetContext(ctx, &rec, s.db.Rebind("SELECT "+selectColumns+" FROM "+tableName+" WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AggregateTemperature{}, ErrNotFound
	}
	if err != nil {
		return model.AggregateTemperature{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+tableName); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	metrics.UpdateStoreRecords(n)
	return n, nil
}
