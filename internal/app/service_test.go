package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/okian/thermo/internal/adapters/mq/queue"
	service "github.com/okian/thermo/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		q := queue.NewInMemoryQueue()
		defer q.Close()
		svc := service.New(newStore(t), q,
			service.WithDataDir(t.TempDir()),
			service.WithScheduler(false, 0, 0),
		)
		defer svc.Stop()
		ctx := context.Background()

		Convey("When it has not been started", func() {
			_, err := svc.Upload(ctx, "a.csv", strings.NewReader(sampleCSV))

			Convey("Then uploads are refused", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["workerCount"], ShouldEqual, 2)
				So(stats["totalRecords"], ShouldEqual, 0)
				So(stats["pendingFiles"], ShouldEqual, 0)
			})

			Convey("And starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
				svc.Stop()
			})
		})
	})
}

func TestService_APIOnly(t *testing.T) {
	Convey("Given a service that does not run workers", t, func() {
		q := queue.NewInMemoryQueue()
		defer q.Close()
		dir := t.TempDir()
		svc := service.New(newStore(t), q,
			service.WithDataDir(dir),
			service.WithWorkers(false),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a file is uploaded", func() {
			id, err := svc.Upload(ctx, "cities.csv", strings.NewReader(sampleCSV))
			So(err, ShouldBeNil)

			Convey("Then the task stays pending for a remote worker", func() {
				time.Sleep(50 * time.Millisecond)
				st, err := svc.TaskStatus(ctx, id)
				So(err, ShouldBeNil)
				So(st.State, ShouldEqual, queue.StatePending)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the status of an unknown task is requested", func() {
			_, err := svc.TaskStatus(ctx, "no-such-task")

			Convey("Then it is not found", func() {
				So(err, ShouldEqual, queue.ErrNotFound)
			})
		})
	})
}

func TestService_UploadRefusedByQueue(t *testing.T) {
	Convey("Given a service whose queue is closed", t, func() {
		q := queue.NewInMemoryQueue()
		dir := t.TempDir()
		svc := service.New(newStore(t), q,
			service.WithDataDir(dir),
			service.WithWorkers(false),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(q.Close(), ShouldBeNil)

		Convey("When a file is uploaded", func() {
			_, err := svc.Upload(ctx, "late.csv", strings.NewReader(sampleCSV))

			Convey("Then it fails and the file waits in the watched directory", func() {
				So(err, ShouldNotBeNil)
				files, ferr := svc.PendingFiles(ctx)
				So(ferr, ShouldBeNil)
				So(len(files), ShouldEqual, 1)
				So(files[0].Name, ShouldEndWith, "_late.csv")
			})
		})
	})
}
