package etl_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/thermo/internal/etl"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWatcher_Scan(t *testing.T) {
	ctx := context.Background()

	Convey("Given a watched directory", t, func() {
		inbox, err := etl.NewInbox(t.TempDir())
		So(err, ShouldBeNil)
		q := &fakeQueue{}
		w := etl.NewWatcher(inbox, q)

		Convey("When two CSV files and other entries are present", func() {
			writeFile(t, inbox.Dir(), "a.csv", csvHeader)
			writeFile(t, inbox.Dir(), "B.CSV", csvHeader)
			writeFile(t, inbox.Dir(), "notes.txt", "x")
			So(os.Mkdir(filepath.Join(inbox.Dir(), "dir.csv"), 0o755), ShouldBeNil)

			n, err := w.Scan(ctx)

			Convey("Then exactly two tasks are enqueued for the claimed paths", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(q.tasks[0].name, ShouldEqual, etl.TaskProcessFile)
				So(q.tasks[0].args, ShouldResemble, []string{filepath.Join(inbox.ClaimDir(), "B.CSV")})
				So(q.tasks[1].args, ShouldResemble, []string{filepath.Join(inbox.ClaimDir(), "a.csv")})
				So(exists(filepath.Join(inbox.Dir(), "a.csv")), ShouldBeFalse)
				So(exists(filepath.Join(inbox.ClaimDir(), "a.csv")), ShouldBeTrue)
			})

			Convey("Then an immediate second scan enqueues nothing", func() {
				again, err := w.Scan(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)
				So(q.count(), ShouldEqual, 2)
			})
		})

		Convey("When the queue is unavailable", func() {
			writeFile(t, inbox.Dir(), "a.csv", csvHeader)
			q.err = errBroker
			n, err := w.Scan(ctx)

			Convey("Then the file is skipped and left for the next scan", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				So(exists(filepath.Join(inbox.Dir(), "a.csv")), ShouldBeTrue)

				q.err = nil
				n, err = w.Scan(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When a claim was abandoned longer than the claim ttl", func() {
			old := writeFile(t, inbox.ClaimDir(), "old.csv", csvHeader)
			fresh := writeFile(t, inbox.ClaimDir(), "fresh.csv", csvHeader)
			writeFile(t, inbox.ClaimDir(), "upload.csv.part", csvHeader)
			past := time.Now().Add(-time.Hour)
			So(os.Chtimes(old, past, past), ShouldBeNil)
			So(os.Chtimes(filepath.Join(inbox.ClaimDir(), "upload.csv.part"), past, past), ShouldBeNil)

			n, err := etl.NewWatcher(inbox, q, etl.WithClaimTTL(30*time.Minute)).Scan(ctx)

			Convey("Then only that claim is enqueued again and its age is reset", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(q.tasks[0].args, ShouldResemble, []string{old})
				info, err := os.Stat(old)
				So(err, ShouldBeNil)
				So(time.Since(info.ModTime()), ShouldBeLessThan, time.Minute)
				So(exists(fresh), ShouldBeTrue)

				again, _ := etl.NewWatcher(inbox, q, etl.WithClaimTTL(30*time.Minute)).Scan(ctx)
				So(again, ShouldEqual, 0)
			})

			Convey("Then a zero ttl disables recovery", func() {
				n, err := etl.NewWatcher(inbox, &fakeQueue{}, etl.WithClaimTTL(0)).Scan(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestWatcher_ConcurrentScans(t *testing.T) {
	Convey("Given many files and several watchers scanning at once", t, func() {
		inbox, err := etl.NewInbox(t.TempDir())
		So(err, ShouldBeNil)
		for i := 0; i < 50; i++ {
			writeFile(t, inbox.Dir(), fmt.Sprintf("f%02d.csv", i), csvHeader)
		}
		q := &fakeQueue{}

		var wg sync.WaitGroup
		var mu sync.Mutex
		total := 0
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, _ := etl.NewWatcher(inbox, q).Scan(context.Background())
				mu.Lock()
				total += n
				mu.Unlock()
			}()
		}
		wg.Wait()

		Convey("Then every file is enqueued exactly once", func() {
			So(total, ShouldEqual, 50)
			seen := map[string]bool{}
			for _, task := range q.tasks {
				So(seen[task.args[0]], ShouldBeFalse)
				seen[task.args[0]] = true
			}
		})
	})
}
