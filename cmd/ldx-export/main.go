// ldx-export runs the catalog's export pipeline for one dataset without the
// HTTP server and writes the result to a file.
//
//	ldx-export --id <dataset-id> [--out dir] [--data-dir dir]
//
// It reads the same environment (and .env file) as the server. The file is
// named after the dataset title with the extension of whatever the pipeline
// produced: .csv, the original content type or the .json metadata document.
// Exit status is 2 when the dataset does not exist and 1 on other errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ldxinsight/catalog/internal/application"
	"github.com/ldxinsight/catalog/internal/config"
	"github.com/ldxinsight/catalog/internal/dataset"
	"github.com/ldxinsight/catalog/internal/logging"
)

// exitError carries a process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	var id, outDir, dataDir string

	flagSet := pflag.NewFlagSet("ldx-export", pflag.ContinueOnError)
	flagSet.StringVar(&id, "id", "", "dataset identifier (required)")
	flagSet.StringVarP(&outDir, "out", "o", ".", "directory to write the file to")
	flagSet.StringVar(&dataDir, "data-dir", "", "override LDX_DATA_DIR for local dataset files")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if id == "" {
		printHelp(flagSet)
		return errors.New("--id is required")
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(overrideEnv(os.Getenv, map[string]string{"LDX_DATA_DIR": dataDir}))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// stdout stays free for the output path.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := application.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	art, err := app.Exporter.Export(ctx, id)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			return &exitError{code: 2, err: err}
		}
		return fmt.Errorf("export %s: %w", id, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(outDir, art.Filename)
	if err := os.WriteFile(path, art.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	slog.Info("export written",
		"dataset_id", id,
		"branch", art.Branch,
		"path", path,
		"bytes", len(art.Body),
	)
	fmt.Println(path)
	return nil
}

// overrideEnv returns a getenv that prefers non-empty values from overrides.
func overrideEnv(getenv func(string) string, overrides map[string]string) func(string) string {
	return func(key string) string {
		if v := overrides[key]; v != "" {
			return v
		}
		return getenv(key)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: ldx-export --id <dataset-id> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Exports one catalog dataset to a file, as the download endpoint would.\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flagSet.PrintDefaults()
}
