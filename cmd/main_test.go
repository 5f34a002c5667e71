package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/trialstats/internal/adapters/repository"
	service "github.com/okian/trialstats/internal/app"
	"github.com/okian/trialstats/internal/config"
	"github.com/okian/trialstats/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func newTestService(t *testing.T, cfg *config.Config) *service.Service {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store, serviceOptions(cfg, logger.Get())...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Stop(ctx)
		_ = store.Close()
	})
	return svc
}

func TestServiceWiring(t *testing.T) {
	convey.Convey("Given configuration from the environment", t, func() {
		t.Setenv("TRIALS_WORKER_COUNT", "3")
		t.Setenv("TRIALS_QUEUE_SIZE", "64")
		t.Setenv("TRIALS_NEIGHBOR_K", "7")
		cfg, err := config.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the service is built from it", func() {
			svc := newTestService(t, cfg)
			stats := svc.GetStats()

			convey.Convey("Then the settings reach the service", func() {
				convey.So(stats["worker_count"], convey.ShouldEqual, 3)
				convey.So(stats["queue_size"], convey.ShouldEqual, 64)
				convey.So(stats["neighbor_k"], convey.ShouldEqual, 7)
			})

			convey.Convey("And a reload swaps the predictor defaults", func() {
				next := *cfg
				next.NeighborK = 2
				next.ExtendedDimensions = true
				applyReload(context.Background(), svc)(&next)

				stats := svc.GetStats()
				convey.So(stats["neighbor_k"], convey.ShouldEqual, 2)
				convey.So(stats["extended"], convey.ShouldEqual, true)
			})

			convey.Convey("And the mux serves docs and API routes", func() {
				mux := newMux(context.Background(), svc)
				for _, path := range []string{"/healthz", "/api-docs", "/openapi.yaml", "/runs", "/stats"} {
					w := httptest.NewRecorder()
					mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})

			convey.Convey("And metrics updates do not panic", func() {
				convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)

				ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
				defer cancel()
				convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given a new HTTP server", t, func() {
		srv := newHTTPServer(":0", http.NewServeMux())

		convey.Convey("Then timeouts are set", func() {
			convey.So(srv.Addr, convey.ShouldEqual, ":0")
			convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			convey.So(srv.IdleTimeout, convey.ShouldEqual, idleTimeout)
		})
	})
}

func TestRunErrors(t *testing.T) {
	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("TRIALS_DB_DRIVER", "mysql")

		convey.Convey("Then run fails before serving", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "db_driver")
		})
	})
}
