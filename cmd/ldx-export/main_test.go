package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/dataset/sqlite"
)

func TestOverrideEnv(t *testing.T) {
	base := func(k string) string {
		return map[string]string{"LDX_DATA_DIR": "/mnt/data", "LOG_LEVEL": "warn"}[k]
	}

	get := overrideEnv(base, map[string]string{"LDX_DATA_DIR": "/tmp/ldx"})
	if got := get("LDX_DATA_DIR"); got != "/tmp/ldx" {
		t.Errorf("LDX_DATA_DIR = %q, want override", got)
	}
	if got := get("LOG_LEVEL"); got != "warn" {
		t.Errorf("LOG_LEVEL = %q, want passthrough", got)
	}

	get = overrideEnv(base, map[string]string{"LDX_DATA_DIR": ""})
	if got := get("LDX_DATA_DIR"); got != "/mnt/data" {
		t.Errorf("empty override should fall through, got %q", got)
	}
}

func TestRun_RequiresID(t *testing.T) {
	err := run(nil)
	if err == nil || !strings.Contains(err.Error(), "--id") {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRun_UnknownDatasetExitsTwo(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "catalog.db"))
	t.Chdir(t.TempDir())

	err := run([]string{"--id", "nope", "--out", t.TempDir()})
	var coder interface{ ExitCode() int }
	if !errors.As(err, &coder) || coder.ExitCode() != 2 {
		t.Fatalf("run() error = %v, want exit code 2", err)
	}
}

func TestRun_WritesMetadataFallback(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Chdir(t.TempDir())

	seedDataset(t, dbPath, "d1", "Rainfall 2023")

	out := t.TempDir()
	if err := run([]string{"--id", "d1", "--out", out, "--data-dir", t.TempDir()}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	body, err := os.ReadFile(filepath.Join(out, "Rainfall 2023.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"title": "Rainfall 2023"`) {
		t.Errorf("metadata document = %s", body)
	}
}

func seedDataset(t *testing.T, dbPath, id, title string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Insert(ctx, dataset.Dataset{ID: id, Title: title, Source: "Met Office"}); err != nil {
		t.Fatal(err)
	}
}
