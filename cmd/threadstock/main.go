package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/threadstock/threadstock/internal/backoff"
	"github.com/threadstock/threadstock/internal/bootstrap"
	"github.com/threadstock/threadstock/internal/config"
	"github.com/threadstock/threadstock/internal/ingest"
	"github.com/threadstock/threadstock/internal/logsink"
	"github.com/threadstock/threadstock/internal/parse"
	"github.com/threadstock/threadstock/internal/rate"
	"github.com/threadstock/threadstock/internal/records"
	"github.com/threadstock/threadstock/internal/runtime"
	"github.com/threadstock/threadstock/internal/state"
	"github.com/threadstock/threadstock/internal/tabular"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "threadstock",
		Short:         "Pull marketplace notification mail into the reseller CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(
		newIngestCmd(&configPath),
		newBootstrapCmd(&configPath),
		newStateCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newIngestCmd(configPath *string) *cobra.Command {
	var (
		every      time.Duration
		budget     time.Duration
		cellWrites bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the ingestion pipeline once, or on an interval with --every",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if every > 0 {
				cfg.Ingest.Every = every
			}
			if budget > 0 {
				cfg.Ingest.Budget = budget
			}
			if cellWrites {
				cfg.Ingest.CellWrites = true
			}

			logger := runtime.DefaultLogger()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cfg, logger)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "rerun the pipeline on this interval")
	cmd.Flags().DurationVar(&budget, "budget", 0, "time budget per run; the cursors resume next run")
	cmd.Flags().BoolVar(&cellWrites, "cell-writes", false, "write cell by cell instead of whole rows")
	return cmd
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	kv, err := state.Open(cfg.State.Path)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	ledger, err := state.LoadLedger(ctx, kv)
	if err != nil {
		return err
	}

	mail, err := runtime.NewGmailClient(ctx, cfg.Google.AuthDir)
	if err != nil {
		return err
	}

	limiter := rate.NewTokenBucket(cfg.Ingest.RPS)
	defer limiter.Stop()

	sheets := sheetsOf(cfg)
	var writer records.Writer = records.NewBatchWriter(store, sheets, cfg)
	if cfg.Ingest.CellWrites {
		writer = records.NewCellWriter(store, sheets, cfg)
	}

	svc := ingest.NewService(mail, writer, ledger, state.NewCursorStore(kv), limiter, logger)
	policy := backoff.Policy{
		Retries:   cfg.Ingest.Retries,
		BaseDelay: cfg.Ingest.BaseDelay,
		Factor:    2,
	}
	svc.Backoff = policy
	svc.Pager.Backoff = policy
	svc.Sink = logsink.NewSheetSink(store, cfg.Sheets.Logs, logger)
	svc.DoneLabel = cfg.Labels.Done
	svc.ErrorLabel = cfg.Labels.Error
	svc.BatchSize = cfg.Ingest.BatchSize

	sources := buildSources(cfg)

	runOnce := func() error {
		runCtx := ctx
		cancel := func() {}
		if cfg.Ingest.Budget > 0 {
			runCtx, cancel = context.WithTimeout(ctx, cfg.Ingest.Budget)
		}
		defer cancel()
		err := svc.Run(runCtx, sources)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			// Budget exhaustion is expected; the cursors resume next run.
			logger.Info("time budget exhausted")
			return nil
		}
		return err
	}

	if cfg.Ingest.Every <= 0 {
		return runOnce()
	}

	ticker := time.NewTicker(cfg.Ingest.Every)
	defer ticker.Stop()
	for {
		if err := runOnce(); err != nil {
			// The next tick gets a fresh attempt; only shutdown ends the loop.
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			logger.Error("ingestion run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func newBootstrapCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Build the dashboard snapshot and cache it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			kv, err := state.Open(cfg.State.Path)
			if err != nil {
				return err
			}
			defer func() { _ = kv.Close() }()

			payload, err := bootstrap.NewBuilder(store, sheetsOf(cfg)).Refresh(ctx, kv)
			if err != nil {
				return err
			}
			if out != "" {
				if err := bootstrap.WriteJSON(payload, out); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "also write the snapshot to this file")
	return cmd
}

func newStateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and maintain local pipeline state",
	}

	var clearLedger, clearCursors bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the processed-ID ledger and/or the pagination cursors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			kv, err := state.Open(cfg.State.Path)
			if err != nil {
				return err
			}
			defer func() { _ = kv.Close() }()

			// No flag means both.
			all := !clearLedger && !clearCursors
			if clearLedger || all {
				if err := state.ClearLedger(ctx, kv); err != nil {
					return err
				}
			}
			if clearCursors || all {
				if err := state.NewCursorStore(kv).Clear(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&clearLedger, "ledger", false, "clear the processed-ID ledger")
	clearCmd.Flags().BoolVar(&clearCursors, "cursors", false, "clear the pagination cursors")

	cmd.AddCommand(clearCmd)
	return cmd
}

func sheetsOf(cfg *config.Config) records.Sheets {
	return records.Sheets{
		Stock:     cfg.Sheets.Stock,
		Sales:     cfg.Sheets.Sales,
		Purchases: cfg.Sheets.Purchases,
		Logs:      cfg.Sheets.Logs,
	}
}

func sheetHeaders(cfg *config.Config) map[string][]string {
	return map[string][]string{
		cfg.Sheets.Stock:     records.StockHeader(),
		cfg.Sheets.Sales:     records.SalesHeader(),
		cfg.Sheets.Purchases: records.PurchasesHeader(),
		cfg.Sheets.Logs:      records.LogsHeader(),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (tabular.Store, func(), error) {
	switch cfg.Backend {
	case "sheets":
		svc, err := runtime.NewSheetsService(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		adapter := runtime.NewSheetsAdapter(svc, cfg.Google.SpreadsheetID)
		for sheet, header := range sheetHeaders(cfg) {
			if err := adapter.EnsureSheet(ctx, sheet, header); err != nil {
				return nil, nil, err
			}
		}
		return adapter, func() {}, nil
	case "postgres":
		pg, err := tabular.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		for sheet, header := range sheetHeaders(cfg) {
			if err := pg.EnsureSheet(ctx, sheet, header); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return pg, pg.Close, nil
	case "memory":
		mem := tabular.NewMemory()
		for sheet, header := range sheetHeaders(cfg) {
			mem.Create(sheet, header)
		}
		return mem, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildSources fixes the ingestion order: stock first so sales and engagement
// find their rows, then sales per platform, then purchases, then engagement.
func buildSources(cfg *config.Config) []ingest.Source {
	sources := []ingest.Source{
		{Category: "stock", Label: cfg.LabelFor("stock"), Parse: parse.Stock},
	}
	for _, p := range records.Platforms() {
		category := "sales/" + string(p)
		label := cfg.LabelFor(category)
		if label == "" {
			continue
		}
		sources = append(sources, ingest.Source{Category: category, Label: label, Parse: parse.Sale})
	}
	sources = append(sources,
		ingest.Source{Category: "purchases", Label: cfg.LabelFor("purchases"), Parse: parse.Purchase},
		ingest.Source{Category: "engagement", Label: cfg.LabelFor("engagement"), Parse: parse.Engagement},
	)
	return sources
}
