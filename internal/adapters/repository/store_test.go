package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/okian/thermo/internal/adapters/repository"
	"github.com/okian/thermo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newMockStore(t *testing.T, driver string) (*repository.SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewSQLStore(sqlx.NewDb(db, driver)), mock
}

func TestSQLStore_InsertMock(t *testing.T) {
	insert := regexp.QuoteMeta("INSERT INTO citytemperature (city, year, avg_temperature) VALUES (?, ?, ?)")
	rows := []model.AggregateTemperature{
		{City: "Paris", Year: 1995, AvgTemperature: 15},
		{City: "Rome", Year: 1995, AvgTemperature: 18},
	}

	Convey("Given a store on a mocked sqlite pool", t, func() {
		store, mock := newMockStore(t, "sqlite3")

		Convey("When inserting two rows", func() {
			mock.ExpectBegin()
			prep := mock.ExpectPrepare(insert)
			prep.ExpectExec().WithArgs("Paris", 1995, 15.0).WillReturnResult(sqlmock.NewResult(1, 1))
			prep.ExpectExec().WithArgs("Rome", 1995, 18.0).WillReturnResult(sqlmock.NewResult(2, 1))
			mock.ExpectCommit()

			Convey("Then both are written in one transaction", func() {
				So(store.Insert(context.Background(), rows), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the second row fails", func() {
			mock.ExpectBegin()
			prep := mock.ExpectPrepare(insert)
			prep.ExpectExec().WithArgs("Paris", 1995, 15.0).WillReturnResult(sqlmock.NewResult(1, 1))
			prep.ExpectExec().WithArgs("Rome", 1995, 18.0).WillReturnError(errors.New("disk I/O error"))
			mock.ExpectRollback()

			Convey("Then the transaction is rolled back", func() {
				err := store.Insert(context.Background(), rows)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "disk I/O error")
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When there is nothing to insert", func() {
			Convey("Then the database is not touched", func() {
				So(store.Insert(context.Background(), nil), ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})
	})
}

func TestSQLStore_QueryMock(t *testing.T) {
	Convey("Given a store on a mocked postgres pool", t, func() {
		store, mock := newMockStore(t, "postgres")

		Convey("When querying with both filters", func() {
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM citytemperature WHERE LOWER(city) LIKE LOWER($1) ESCAPE '\' AND year = $2`)).
				WithArgs(`%New\_York%`, 2000).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, city, year, avg_temperature FROM citytemperature WHERE LOWER(city) LIKE LOWER($1) ESCAPE '\' AND year = $2 ORDER BY id LIMIT $3 OFFSET $4`)).
				WithArgs(`%New\_York%`, 2000, 20, 20).
				WillReturnRows(sqlmock.NewRows([]string{"id", "city", "year", "avg_temperature"}).
					AddRow(41, "New_York", 2000, 12.5))

			page, err := store.Query(context.Background(), model.Filter{City: "New_York", Year: 2000}, 2, 20)

			Convey("Then the dialect placeholders and escaped pattern are used", func() {
				So(err, ShouldBeNil)
				So(page.Page, ShouldEqual, 2)
				So(page.TotalPages, ShouldEqual, 2)
				So(page.Data, ShouldResemble, []model.AggregateTemperature{{ID: 41, City: "New_York", Year: 2000, AvgTemperature: 12.5}})
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the page is out of range", func() {
			_, err := store.Query(context.Background(), model.Filter{}, 0, 20)
			So(errors.Is(err, repository.ErrInvalidPage), ShouldBeTrue)
		})

		Convey("When the id does not exist", func() {
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, city, year, avg_temperature FROM citytemperature WHERE id = $1`)).
				WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "city", "year", "avg_temperature"}))

			_, err := store.GetByID(context.Background(), 7)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}
