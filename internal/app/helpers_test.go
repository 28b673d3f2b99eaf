package service_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/thermo/internal/adapters/repository"
	"github.com/okian/thermo/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

const sampleCSV = `dt,AverageTemperature,AverageTemperatureUncertainty,City,Country
1995-01-01,10,0.3,Paris,France
1995-06-01,20,0.3,Paris,France
1890-06-01,30,0.3,Paris,France
2001-01-01,5,0.2,Oslo,Norway
2001-02-01,,0.2,Oslo,Norway
`

func newStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "thermo.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := repository.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return repository.NewSQLStore(db)
}

// eventually polls cond until it holds or the timeout passes.
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
