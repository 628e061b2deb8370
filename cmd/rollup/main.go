// Command rollup runs one daily rollup and prints the result as JSON. It is
// meant to be triggered by an external scheduler.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"salereport/backend/internal/app"
	"salereport/backend/internal/bizday"
	"salereport/backend/internal/config"
	"salereport/backend/internal/domain"
	"salereport/backend/internal/logger"
)

type options struct {
	date      string
	fromStore bool
	reconcile bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rollup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.date, "date", "", "business day to roll up, YYYY-MM-DD (UTC+7)")
	fs.BoolVar(&opts.fromStore, "from-store", false, "recompute from payments instead of the cache")
	fs.BoolVar(&opts.reconcile, "reconcile", false, "recompute from payments and clear the day's cache keys")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if _, err := bizday.Parse(opts.date); err != nil {
		return options{}, fmt.Errorf("-date: %w", err)
	}
	return opts, nil
}

type reporter interface {
	GenerateDailyReport(ctx context.Context, date string) (domain.DailyReportResult, error)
	RebuildDailyReport(ctx context.Context, date string, clearCache bool) (domain.DailyReportResult, error)
}

// rollup runs the selected path and writes the result, partial or not, to out.
func rollup(ctx context.Context, svc reporter, opts options, out io.Writer) error {
	var (
		result domain.DailyReportResult
		err    error
	)
	switch {
	case opts.reconcile:
		result, err = svc.RebuildDailyReport(ctx, opts.date, true)
	case opts.fromStore:
		result, err = svc.RebuildDailyReport(ctx, opts.date, false)
	default:
		result, err = svc.GenerateDailyReport(ctx, opts.date)
	}

	if result.Date != "" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return errors.Join(err, encErr)
		}
	}
	return err
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("rollup: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open backends", zap.Error(err))
	}

	err = rollup(ctx, backends.Service(cfg, zl), opts, os.Stdout)
	if closeErr := backends.Close(); closeErr != nil {
		zl.Warn("close error", zap.Error(closeErr))
	}
	if err != nil {
		zl.Error("rollup failed", zap.String("date", opts.date), zap.Error(err))
		_ = zl.Sync()
		os.Exit(1)
	}
}
