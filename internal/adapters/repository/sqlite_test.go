package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/thermo/internal/adapters/repository"
	"github.com/okian/thermo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newSQLiteStore(t *testing.T) *repository.SQLStore {
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
	// A second call must be harmless.
	if err := repository.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema twice: %v", err)
	}
	return repository.NewSQLStore(db)
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sqlite store with 25 records", t, func() {
		store := newSQLiteStore(t)
		rows := make([]model.AggregateTemperature, 0, 25)
		for i := 0; i < 25; i++ {
			rows = append(rows, model.AggregateTemperature{
				City:           []string{"Paris", "Rome", "Saint-Denis", "100%Town", "Oslo"}[i%5],
				Year:           1990 + i,
				AvgTemperature: float64(i) / 2,
			})
		}
		So(store.Insert(ctx, rows), ShouldBeNil)

		Convey("When reading the pages without filters", func() {
			first, err := store.Query(ctx, model.Filter{}, 1, 20)
			So(err, ShouldBeNil)
			second, err := store.Query(ctx, model.Filter{}, 2, 20)
			So(err, ShouldBeNil)
			third, err := store.Query(ctx, model.Filter{}, 3, 20)
			So(err, ShouldBeNil)

			Convey("Then page 1 has 20 rows, page 2 the remaining 5", func() {
				So(first.TotalPages, ShouldEqual, 2)
				So(len(first.Data), ShouldEqual, 20)
				So(second.TotalPages, ShouldEqual, 2)
				So(len(second.Data), ShouldEqual, 5)
				So(third.Data, ShouldBeEmpty)
				So(first.Data[0].ID, ShouldBeLessThan, first.Data[1].ID)
				So(second.Data[4].Year, ShouldEqual, 2014)
			})
		})

		Convey("When filtering by a city substring in another case", func() {
			page, err := store.Query(ctx, model.Filter{City: "PAR"}, 1, 20)

			Convey("Then matching cities are returned", func() {
				So(err, ShouldBeNil)
				So(page.TotalPages, ShouldEqual, 1)
				So(len(page.Data), ShouldEqual, 5)
				for _, r := range page.Data {
					So(r.City, ShouldEqual, "Paris")
				}
			})
		})

		Convey("When a city name has non-ASCII capitals", func() {
			So(store.Insert(ctx, []model.AggregateTemperature{
				{City: "Århus", Year: 2001, AvgTemperature: 8.5},
				{City: "ZÜRICH", Year: 2001, AvgTemperature: 9.5},
			}), ShouldBeNil)

			exact, err := store.Query(ctx, model.Filter{City: "Århus"}, 1, 20)
			So(err, ShouldBeNil)
			upper, err := store.Query(ctx, model.Filter{City: "zÜrich"}, 1, 20)
			So(err, ShouldBeNil)
			tail, err := store.Query(ctx, model.Filter{City: "HUS"}, 1, 20)
			So(err, ShouldBeNil)

			Convey("Then the stored name matches itself and ASCII letters fold", func() {
				So(exact.Data, ShouldHaveLength, 1)
				So(exact.Data[0].City, ShouldEqual, "Århus")
				So(upper.Data, ShouldHaveLength, 1)
				So(upper.Data[0].City, ShouldEqual, "ZÜRICH")
				So(tail.Data, ShouldHaveLength, 1)
				So(tail.Data[0].City, ShouldEqual, "Århus")
			})
		})

		Convey("When the city filter contains LIKE wildcards", func() {
			literal, err := store.Query(ctx, model.Filter{City: "0%t"}, 1, 20)
			So(err, ShouldBeNil)
			underscore, err := store.Query(ctx, model.Filter{City: "_"}, 1, 20)
			So(err, ShouldBeNil)

			Convey("Then they match literally", func() {
				So(len(literal.Data), ShouldEqual, 5)
				So(literal.Data[0].City, ShouldEqual, "100%Town")
				So(underscore.Data, ShouldBeEmpty)
				So(underscore.TotalPages, ShouldEqual, 0)
			})
		})

		Convey("When filtering by year", func() {
			page, err := store.Query(ctx, model.Filter{Year: 1993}, 1, 20)
			So(err, ShouldBeNil)
			So(page.Data, ShouldHaveLength, 1)
			So(page.Data[0].City, ShouldEqual, "100%Town")

			Convey("Then the record can be fetched by id", func() {
				rec, err := store.GetByID(ctx, page.Data[0].ID)
				So(err, ShouldBeNil)
				So(rec, ShouldResemble, page.Data[0])
			})
		})

		Convey("When the same pair is inserted again", func() {
			So(store.Insert(ctx, []model.AggregateTemperature{{City: "Paris", Year: 1990, AvgTemperature: 99}}), ShouldBeNil)

			Convey("Then both rows are kept", func() {
				page, err := store.Query(ctx, model.Filter{City: "Paris", Year: 1990}, 1, 20)
				So(err, ShouldBeNil)
				So(page.Data, ShouldHaveLength, 2)
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 26)
			})
		})

		Convey("When a batch contains a year the table rejects", func() {
			err := store.Insert(ctx, []model.AggregateTemperature{
				{City: "Lima", Year: 2001, AvgTemperature: 20},
				{City: "Lima", Year: 1900, AvgTemperature: 20},
			})

			Convey("Then none of the batch is stored", func() {
				So(err, ShouldNotBeNil)
				page, err := store.Query(ctx, model.Filter{City: "Lima"}, 1, 20)
				So(err, ShouldBeNil)
				So(page.Data, ShouldBeEmpty)
			})
		})

		Convey("When fetching an unknown id", func() {
			_, err := store.GetByID(ctx, 10_000)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given an unsupported driver", t, func() {
		_, err := repository.Open(context.Background(), "mysql", "")
		So(errors.Is(err, repository.ErrUnsupportedDriver), ShouldBeTrue)
	})

	Convey("Given an in-memory sqlite database", t, func() {
		db, err := repository.Open(context.Background(), repository.DriverSQLite, ":memory:")
		So(err, ShouldBeNil)
		defer db.Close()
		So(repository.EnsureSchema(context.Background(), db), ShouldBeNil)

		Convey("Then the schema is visible across calls", func() {
			store := repository.NewSQLStore(db)
			So(store.Insert(context.Background(), []model.AggregateTemperature{{City: "Kyiv", Year: 2000, AvgTemperature: 8}}), ShouldBeNil)
			n, err := store.Count(context.Background())
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(db.DriverName(), ShouldEqual, "sqlite3")
		})
	})
}
