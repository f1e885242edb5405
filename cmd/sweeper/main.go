// Command sweeper finds upload files that no movie references any more, for
// example after a best-effort delete failed to remove them. It only reports
// unless -delete is given. With -interval it keeps running under a supervisor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cinefree/internal/catalog"
	"cinefree/internal/config"
	"cinefree/internal/supervisor"
	"cinefree/internal/upload"
	"cinefree/pkg/logger"
)

type sweeper struct {
	store   *catalog.FileStore
	uploads *upload.Storage
	minAge  time.Duration
	remove  bool
	every   time.Duration
	log     zerolog.Logger
}

type sweepResult struct {
	Orphans []upload.Orphan
	Removed int
	Bytes   int64
}

func main() {
	fs := flag.NewFlagSet("sweeper", flag.ExitOnError)
	remove := fs.Bool("delete", false, "remove orphaned files instead of only listing them")
	minAge := fs.Duration("min-age", time.Hour, "ignore files modified more recently than this")
	interval := fs.Duration("interval", 0, "repeat every interval, 0 runs once")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		l := logger.New(logger.Config{})
		l.Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).
		With().Str("service", "sweeper").Logger()

	sw, err := newSweeper(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	sw.minAge, sw.remove, sw.every = *minAge, *remove, *interval

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sw.every <= 0 {
		if _, err := sw.sweep(ctx); err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		return
	}

	tree := supervisor.NewTree("cinefree-sweeper", log, supervisor.DefaultTreeConfig())
	tree.Add(sw)
	log.Info().Dur("interval", sw.every).Bool("delete", sw.remove).Msg("sweeper starting")
	if err := tree.Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweeper stopped")
	}
}

// newSweeper refuses to run without an existing catalog file: a wrong path
// would otherwise make every upload look orphaned.
func newSweeper(cfg *config.Config, log zerolog.Logger) (*sweeper, error) {
	if _, err := os.Stat(cfg.Storage.DataFile); err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}
	store, err := catalog.NewFileStore(cfg.Storage.DataFile, nil, log)
	if err != nil {
		return nil, err
	}
	uploads, err := upload.NewStorage(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	return &sweeper{store: store, uploads: uploads, minAge: time.Hour, log: log}, nil
}

func (s *sweeper) sweep(ctx context.Context) (sweepResult, error) {
	var res sweepResult
	refs, err := s.store.VideoRefs(ctx)
	if err != nil {
		return res, err
	}
	res.Orphans, err = s.uploads.Orphans(refs, s.minAge)
	if err != nil {
		return res, err
	}
	for _, o := range res.Orphans {
		res.Bytes += o.Size
		ev := s.log.Info().Str("file", o.Name).Int64("size", o.Size).Time("modified", o.ModTime)
		if !s.remove {
			ev.Msg("orphaned upload")
			continue
		}
		if err := s.uploads.Remove(upload.URLPrefix + o.Name); err != nil {
			s.log.Error().Err(err).Str("file", o.Name).Msg("remove orphan")
			continue
		}
		res.Removed++
		ev.Msg("removed orphaned upload")
	}
	s.log.Info().
		Int("orphans", len(res.Orphans)).
		Int("removed", res.Removed).
		Int64("bytes", res.Bytes).
		Int("referenced", len(refs)).
		Msg("sweep completed")
	return res, nil
}

// Serve runs a sweep every interval until ctx ends. A corrupt catalog is
// logged and retried on the next tick rather than ending the service.
func (s *sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		if _, err := s.sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.log.Error().Err(err).Msg("sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *sweeper) String() string {
	return "upload-sweeper"
}
