package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/heartscan/internal/application"
	appanalysis "github.com/bryanwahyu/heartscan/internal/application/analysis"
	appusers "github.com/bryanwahyu/heartscan/internal/application/users"
	"github.com/bryanwahyu/heartscan/internal/config"
	domain "github.com/bryanwahyu/heartscan/internal/domain/analysis"
	domusers "github.com/bryanwahyu/heartscan/internal/domain/users"
	mysqlp "github.com/bryanwahyu/heartscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/heartscan/internal/infra/db/postgres"
	"github.com/bryanwahyu/heartscan/internal/infra/executor/classifier"
	"github.com/bryanwahyu/heartscan/internal/infra/httpserver"
	"github.com/bryanwahyu/heartscan/internal/infra/session"
	"github.com/bryanwahyu/heartscan/internal/infra/storage"
	"github.com/bryanwahyu/heartscan/internal/logger"
	"github.com/bryanwahyu/heartscan/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// database
	db, analysisRepo, userRepo, err := openDatabase(ctx, cfg)
	if err != nil {
		log.Fatal("database connect error", "driver", cfg.Database.Driver, "error", err)
	}
	defer db.Close()
	log.Info("database connected", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "name", cfg.Database.Name)

	// uploads
	disk, err := storage.NewDisk(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, application.SystemClock{})
	if err != nil {
		log.Fatal("uploads dir error", "dir", cfg.Uploads.Dir, "error", err)
	}
	if err := os.MkdirAll(disk.Dir(), 0o755); err != nil {
		log.Fatal("uploads dir error", "dir", disk.Dir(), "error", err)
	}

	var archive domain.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal("minio init error", "endpoint", cfg.Minio.Endpoint, "error", err)
		}
		archive = store
		log.Info("archiving uploads to minio", "bucket", cfg.Minio.BucketName)
	}

	// sessions
	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	var sessions domusers.SessionStore
	if cfg.Redis.Addr != "" {
		rs, err := session.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("redis connect error", "addr", cfg.Redis.Addr, "error", err)
		}
		defer rs.Close()
		sessions = rs
		health["redis"] = middleware.CheckerFunc(rs.Check)
	} else {
		log.Warn("no redis configured, sessions kept in memory")
		sessions = session.NewMemory()
	}

	runner := classifier.NewRunner(classifier.Options{
		Interpreter: cfg.Classifier.Interpreter,
		VenvDir:     cfg.Classifier.VenvDir,
		Script:      cfg.Classifier.Script,
		Timeout:     cfg.Classifier.Timeout,
	}, log)

	analysisSvc := &appanalysis.Service{
		Repo:           analysisRepo,
		Runner:         runner,
		Files:          disk,
		Archive:        archive,
		Log:            log.With("component", "analysis"),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		FailClosed:     cfg.Persistence.FailClosed,
	}
	usersSvc := &appusers.Service{
		Repo:       userRepo,
		Sessions:   sessions,
		Clock:      application.SystemClock{},
		Log:        log.With("component", "users"),
		SessionTTL: cfg.Redis.SessionTTL,
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		log.Fatal("invalid rateLimit.trustedProxies", "error", err)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	limiter.TrustProxies(proxies)
	defer limiter.Stop()

	ready := map[string]middleware.HealthChecker{
		"database":          health["database"],
		"uploads":           middleware.PathChecker{Path: disk.Dir(), Dir: true},
		"classifier_script": middleware.PathChecker{Path: cfg.Classifier.Script},
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(analysisSvc, usersSvc, log, httpserver.Options{
		UploadsDir:     disk.Dir(),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		ProtectUsers:   cfg.UsersProtected(),
		ProtectStats:   cfg.Auth.ProtectStats,
		SecureCookies:  cfg.Auth.SecureCookies,
		SessionTTL:     cfg.Redis.SessionTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Limiter:        limiter,
		Health:         health,
		Ready:          ready,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// uploads hold the response open until the classifier exits
	writeTimeout := cfg.Classifier.Timeout + 30*time.Second
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", "error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Classifier.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Repository, domusers.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return db, postgres.NewAnalysisRepository(db), postgres.NewUserRepository(db), nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := mysqlp.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return db, mysqlp.NewAnalysisRepository(db), mysqlp.NewUserRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
