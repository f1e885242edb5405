package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cinefree/internal/client"
	"cinefree/internal/config"
	"cinefree/internal/supervisor"
	"cinefree/internal/webui"
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
		With().Str("service", "web").Logger()

	api := client.New(cfg.Web.APIURL, nil)
	app := webui.NewApp(api, log, cfg.Storage.MaxUploadBytes)

	srv := &http.Server{
		Addr:              cfg.WebAddr(),
		Handler:           webui.NewHandler(app, webui.RenderOptions{PublicAPIURL: cfg.Web.PublicAPIURL}, log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree("cinefree-web", log, supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout})
	tree.Add(supervisor.NewHTTPServerService("web", srv, cfg.Server.ShutdownTimeout))

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := api.Health(probeCtx); err != nil {
		log.Warn().Err(err).Str("api_url", api.BaseURL()).Msg("catalog service not reachable yet")
	}
	cancel()

	log.Info().
		Str("addr", srv.Addr).
		Str("version", buildVersion).
		Str("api_url", api.BaseURL()).
		Str("public_api_url", cfg.Web.PublicAPIURL).
		Msg("web listening")
	if err := tree.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
