package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cinefree/internal/auth"
	"cinefree/internal/catalog"
	"cinefree/internal/config"
	"cinefree/internal/metrics"
	"cinefree/internal/supervisor"
	"cinefree/internal/upload"
	"cinefree/pkg/logger"
)

var buildVersion = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New(logger.Config{})
		l.Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).
		With().Str("service", "api").Logger()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	d, err := newDeps(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree("cinefree-api", log, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.Add(supervisor.NewHTTPServerService("api", srv, cfg.Server.ShutdownTimeout))

	log.Info().
		Str("addr", srv.Addr).
		Str("version", buildVersion).
		Str("data_file", cfg.Storage.DataFile).
		Str("upload_dir", cfg.Storage.UploadDir).
		Msg("api listening")
	if err := tree.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// deps is everything the handlers need.
type deps struct {
	store         catalog.Store
	uploads       *upload.Storage
	auth          *auth.Service
	metrics       *metrics.Metrics
	log           zerolog.Logger
	maxUpload     int64
	allowedGenres []string
	corsOrigins   []string
	loginLimit    int
	loginWindow   time.Duration
}

func newDeps(cfg *config.Config, log zerolog.Logger) (*deps, error) {
	var seed []catalog.Movie
	if cfg.Storage.SeedDemo {
		seed = catalog.SeedMovies()
	}
	store, err := catalog.NewFileStore(cfg.Storage.DataFile, seed, log)
	if err != nil {
		return nil, err
	}
	uploads, err := upload.NewStorage(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewService(auth.Config{
		Username: cfg.Auth.AdminUsername,
		Password: cfg.Auth.AdminPassword,
		Secret:   cfg.Auth.Secret,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, err
	}
	return &deps{
		store:         store,
		uploads:       uploads,
		auth:          authSvc,
		metrics:       metrics.New(),
		log:           log,
		maxUpload:     cfg.Storage.MaxUploadBytes,
		allowedGenres: cfg.Catalog.AllowedGenres,
		corsOrigins:   cfg.Security.CORSOrigins,
		loginLimit:    cfg.Security.LoginRateLimit,
		loginWindow:   cfg.Security.LoginRateWindow,
	}, nil
}
