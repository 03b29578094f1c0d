package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/assetdna/registry/pkg/actor"
	"github.com/assetdna/registry/pkg/audit"
	"github.com/assetdna/registry/pkg/cache"
	"github.com/assetdna/registry/pkg/db"
	"github.com/assetdna/registry/pkg/ha"
	"github.com/assetdna/registry/pkg/inventory"
	"github.com/assetdna/registry/pkg/jobs"
)

// registry holds the wired services of one server process.
type registry struct {
	cfg    *serverConfig
	logger *slog.Logger
	db     *gorm.DB

	tree     *inventory.Tree
	boms     *inventory.BOMService
	importer *inventory.Importer

	auditCfg   *audit.AuditConfig
	auditStore *inventory.AuditStore
	retention  *audit.RetentionWorker

	jobCfg   *jobs.JobConfig
	jobStore *jobs.JobStore
	workers  *jobs.WorkerPool

	cache *cache.CacheManager
}

// newRegistry opens the database, runs migrations under the migration lock
// and constructs every service.
func newRegistry(ctx context.Context, cfg *serverConfig, invCfg *inventory.Config, logger *slog.Logger) (*registry, error) {
	gdb, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}

	store := inventory.NewGormStore(gdb)
	jobStore := jobs.NewJobStore(gdb)

	locker, err := ha.NewMigrationLocker(gdb, ha.HAConfigFromEnv())
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	err = locker.WithLock(ctx, func() error {
		if err := store.AutoMigrate(); err != nil {
			return err
		}
		if err := jobStore.AutoMigrate(); err != nil {
			return err
		}
		return store.SeedAssetTypes(ctx)
	})
	if err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	tree := inventory.NewTree(store, invCfg, logger)
	importer := inventory.NewImporter(tree, store)
	auditCfg := audit.AuditConfigFromEnv()
	auditStore := inventory.NewAuditStore(gdb)
	jobCfg := jobs.JobConfigFromEnv()

	r := &registry{
		cfg:        cfg,
		logger:     logger,
		db:         gdb,
		tree:       tree,
		boms:       inventory.NewBOMService(store, invCfg, logger),
		importer:   importer,
		auditCfg:   auditCfg,
		auditStore: auditStore,
		retention:  audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger),
		jobCfg:     jobCfg,
		jobStore:   jobStore,
		workers:    jobs.NewWorkerPool(jobStore, importer, jobCfg, logger),
		cache:      cache.NewCacheManager(cache.CacheConfigFromEnv()),
	}
	r.workers.OnJobComplete(func(*jobs.ImportJob) { r.cache.InvalidateAll() })
	return r, nil
}

func (r *registry) close() error {
	return db.Close(r.db)
}

// router mounts the API under /api/v1 next to /metrics and /healthz.
func (r *registry) router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	if len(r.cfg.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: r.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", actor.UserHeader, actor.GroupsHeader,
				jobs.IdempotencyHeader, "X-Correlation-ID"},
			ExposedHeaders: []string{"X-Cache", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", r.healthHandler())

	mux.Route("/api/v1", func(api chi.Router) {
		api.Use(actor.NewMiddleware(r.cfg.ActorMode))
		api.Use(audit.AuditMiddleware(r.auditStore, r.auditCfg, r.logger))
		api.Use(r.cache.InvalidateOnWrite())

		api.Mount("/audit", audit.Router(r.auditStore))
		api.Mount("/jobs", jobs.Router(r.jobStore, r.jobCfg))
		api.Mount("/", inventory.NewRouter(r.tree, r.boms, r.importer, r.cache.ReadMiddleware()))
	})
	return mux
}

func (r *registry) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}

		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if sqlDB, err := r.db.DB(); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}
		} else if err := sqlDB.PingContext(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// serve runs the HTTP server and the background workers until ctx is done,
// then shuts the server down within cfg.ShutdownTimeout.
func (r *registry) serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              r.cfg.Listen,
		Handler:           r.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.workers.Run(gctx) })
	g.Go(func() error { return r.retention.Run(gctx) })
	g.Go(func() error {
		r.logger.Info("assetdna server ready", "listen", r.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), r.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})
	return g.Wait()
}
