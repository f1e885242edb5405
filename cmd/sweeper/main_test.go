package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cinefree/internal/catalog"
	"cinefree/internal/config"
)

func setup(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{
		DataFile:  filepath.Join(dir, "movies.json"),
		UploadDir: filepath.Join(dir, "uploads"),
	}}
	store, err := catalog.NewFileStore(cfg.Storage.DataFile, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ref := "/uploads/1_kept.mp4"
	if _, err := store.Create(context.Background(), catalog.Movie{Title: "K", Genre: "Drama", Description: "k", VideoURL: &ref}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o750); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	for name, age := range map[string]time.Time{
		"1_kept.mp4":  old,
		"2_stray.mp4": old,
		"3_fresh.mp4": time.Now(),
	} {
		p := filepath.Join(cfg.Storage.UploadDir, name)
		if err := os.WriteFile(p, []byte("data"), 0o640); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, age, age); err != nil {
			t.Fatal(err)
		}
	}
	return cfg, cfg.Storage.UploadDir
}

func TestSweep_ReportOnly(t *testing.T) {
	cfg, dir := setup(t)
	sw, err := newSweeper(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := sw.sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Orphans) != 1 || res.Orphans[0].Name != "2_stray.mp4" || res.Removed != 0 || res.Bytes != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "2_stray.mp4")); err != nil {
		t.Fatal("report mode must not delete")
	}
}

func TestSweep_Delete(t *testing.T) {
	cfg, dir := setup(t)
	sw, err := newSweeper(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	sw.remove = true
	res, err := sw.sweep(context.Background())
	if err != nil || res.Removed != 1 {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("expected kept and fresh files to remain, got %d entries", len(entries))
	}
}

func TestSweep_RefusesCorruptCatalog(t *testing.T) {
	cfg, dir := setup(t)
	if err := os.WriteFile(cfg.Storage.DataFile, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	sw, err := newSweeper(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	sw.remove = true
	if _, err := sw.sweep(context.Background()); err == nil {
		t.Fatal("expected an error for a corrupt catalog")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 3 {
		t.Fatal("nothing may be removed when the catalog cannot be read")
	}
}

func TestNewSweeper_MissingCatalog(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{
		DataFile:  filepath.Join(t.TempDir(), "nope.json"),
		UploadDir: t.TempDir(),
	}}
	if _, err := newSweeper(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected an error without a catalog file")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg, _ := setup(t)
	sw, err := newSweeper(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	sw.every = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sw.Serve(ctx); err == nil {
		t.Fatal("Serve should return the context error")
	}
}
