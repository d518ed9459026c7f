package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	api "github.com/qknou/qknou-web/internal/api/http"
	auth "github.com/qknou/qknou-web/internal/auth/middleware"
	"github.com/qknou/qknou-web/internal/config"
	"github.com/qknou/qknou-web/internal/db"
	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/examapi/cache"
	"github.com/qknou/qknou-web/internal/history"
	"github.com/qknou/qknou-web/internal/logger"
	"github.com/qknou/qknou-web/internal/metrics"
	"github.com/qknou/qknou-web/internal/tab"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}

	code := 0
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		code = 1
	} else {
		log.Info("server stopped")
	}
	log.Sync()
	os.Exit(code)
}

// run wires the service and blocks until it is told to stop. Deferred
// cleanup runs on every return path.
func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB (submission audit log) ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("open %s db: %w", cfg.DBDriver, err)
	}
	defer dbh.Close()
	events := history.NewEventRepo(dbh)

	// --- Question cache ---
	var qc cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rdb, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			qc = cache.NewRedis(rdb, "qknou:")
		}
	}

	// --- Upstream exam API ---
	client := examapi.New(examapi.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		Cache:    qc,
		CacheTTL: cfg.CacheTTL,
	})

	// --- Tabs ---
	tabs := tab.NewRegistry(tab.Config{
		Fetcher:      client,
		Submitter:    client,
		ExamDuration: cfg.ExamDuration,
		IdleTTL:      cfg.TabIdleTTL,
		Log:          log,
		OnSubmitted:  recordSubmission(events, log),
	})

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	if cfg.AuthHMACSecret == "" {
		log.Warn("AUTH_HMAC_SECRET not set, login tokens are decoded without verification")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Mount("/api", api.APIRoutes(api.Deps{
		Tabs:    tabs,
		Catalog: client,
		Auth:    authSvc,
		History: events,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", readyz(dbh))
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tabs.Run(gctx) })
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "api", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// recordSubmission appends every graded exam to the audit log. A failed write
// is logged and does not affect the session.
func recordSubmission(events *history.EventRepo, log *logger.Logger) tab.SubmittedFunc {
	return func(ctx context.Context, t *tab.Tab, examID string, req exam.SubmitRequest, resp exam.SubmitResponse, elapsed time.Duration) {
		s := history.NewSubmission(t.ID(), t.UserID(), examID, req, resp, elapsed)
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := events.RecordSubmission(wctx, s); err != nil {
			log.Error("record submission failed", "tab_id", t.ID(), "exam_id", examID, "error", err)
		}
	}
}

func readyz(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	}
}
