// Command healthcheck probes the CineFree API and, optionally, the UI host.
// With -interval 0 it checks once and exits 0 when every target is healthy,
// 1 otherwise; a positive interval keeps probing and logs each round.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cinefree/internal/client"
	"cinefree/pkg/logger"
)

type target struct {
	Name string
	URL  string
}

type result struct {
	Target  target
	OK      bool
	Latency time.Duration
	Err     error
}

type options struct {
	APIURL     string
	WebURL     string
	Interval   time.Duration
	Timeout    time.Duration
	Concurrent int
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.APIURL, "api", getenv("API_URL", "http://localhost:3001"), "API base URL")
	fs.StringVar(&o.WebURL, "web", os.Getenv("WEB_URL"), "UI host base URL, skipped when empty")
	fs.DurationVar(&o.Interval, "interval", durationDefault(os.Getenv("CHECK_INTERVAL"), 0), "probe interval, 0 checks once")
	fs.DurationVar(&o.Timeout, "timeout", durationDefault(os.Getenv("CHECK_TIMEOUT"), 2*time.Second), "per probe timeout")
	fs.IntVar(&o.Concurrent, "concurrency", 4, "parallel probes")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.Concurrent < 1 {
		o.Concurrent = 1
	}
	return o, nil
}

func (o options) targets() []target {
	ts := []target{{Name: "api", URL: strings.TrimRight(o.APIURL, "/")}}
	if o.WebURL != "" {
		ts = append(ts, target{Name: "web", URL: strings.TrimRight(o.WebURL, "/") + "/healthz"})
	}
	return ts
}

func main() {
	log := logger.New(logger.Config{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")}).
		With().Str("service", "healthcheck").Logger()
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc := &http.Client{Timeout: opts.Timeout}
	if opts.Interval <= 0 {
		if !healthy(report(log, runChecks(ctx, hc, opts.targets(), opts.Concurrent))) {
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		report(log, runChecks(ctx, hc, opts.targets(), opts.Concurrent))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runChecks(ctx context.Context, hc *http.Client, targets []target, concurrent int) []result {
	results := make([]result, len(targets))
	sem := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t target) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = probe(ctx, hc, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

func probe(ctx context.Context, hc *http.Client, t target) result {
	start := time.Now()
	var err error
	if t.Name == "api" {
		err = client.New(t.URL, hc).Health(ctx)
	} else {
		err = getOK(ctx, hc, t.URL)
	}
	return result{Target: t, OK: err == nil, Latency: time.Since(start), Err: err}
}

func getOK(ctx context.Context, hc *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &client.StatusError{Code: resp.StatusCode}
	}
	return nil
}

func report(log zerolog.Logger, results []result) []result {
	for _, r := range results {
		ev := log.Info()
		if !r.OK {
			ev = log.Error().Err(r.Err)
		}
		ev.Str("target", r.Target.Name).
			Str("url", r.Target.URL).
			Bool("healthy", r.OK).
			Dur("latency", r.Latency).
			Msg("probe")
	}
	return results
}

func healthy(results []result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationDefault(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
