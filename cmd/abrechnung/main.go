/*
main.go - Settlement document CLI

PURPOSE:
  Computes one settlement straight from the web app's Postgres database and
  writes the documents to disk. No local database is involved.

COMMAND-LINE FLAGS:
  -config      YAML configuration file (default: $MIETEVO_CONFIG)
  -dsn         Postgres DSN, overrides database.postgres_dsn / DATABASE_URL
  -settlement  Settlement ID (required)
  -tenant      Tenant ID; settles that tenant only when set
  -format      pdf or xlsx (default: pdf)
  -out         Output directory (default: current directory)

OUTPUT:
  One file named Abrechnung_{year}_{tenant}.{ext}, or
  Abrechnung_{year}_Alle_Mieter.{ext} when no tenant is selected.
  A summary line per tenant is printed to stdout.

EXAMPLES:
  ./abrechnung -settlement=nk-2024-1
  ./abrechnung -settlement=nk-2024-1 -tenant=mieter-7 -format=xlsx -out=./out
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/mietevo/settlement-engine/config"
	"github.com/mietevo/settlement-engine/export"
	"github.com/mietevo/settlement-engine/generic"
	"github.com/mietevo/settlement-engine/settlement"
	"github.com/mietevo/settlement-engine/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "abrechnung: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML configuration file")
	dsn := flag.String("dsn", "", "Postgres DSN")
	settlementID := flag.String("settlement", "", "settlement ID")
	tenantID := flag.String("tenant", "", "tenant ID (default: all tenants)")
	formatFlag := flag.String("format", "pdf", "output format: pdf or xlsx")
	outDir := flag.String("out", ".", "output directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dsn != "" {
		cfg.Database.PostgresDSN = *dsn
	}
	if cfg.Database.PostgresDSN == "" {
		return errors.New("no database: set -dsn or DATABASE_URL")
	}
	if *settlementID == "" {
		return errors.New("-settlement is required")
	}
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := postgres.Open(ctx, cfg.Database.PostgresDSN, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	mode := settlement.ModeAll
	if *tenantID != "" {
		mode = settlement.ModeSingle
	}
	comp, err := settlement.NewService(source, logger).
		Compute(ctx, generic.SettlementID(*settlementID), mode, generic.TenantID(*tenantID))
	if err != nil {
		return err
	}
	if len(comp.Results) == 0 {
		return fmt.Errorf("settlement %s has no tenants", *settlementID)
	}

	doc := export.BuildDocument(cfg.Owner, comp.Settlement, mode, comp.Results)
	data, err := export.Render(doc, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(*outDir, export.Filename(comp.Settlement.Year, doc.TenantName, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	for _, r := range comp.Results {
		fmt.Printf("%-30s %-12s %12s %s\n",
			r.TenantName, r.UnitName, export.FormatEUR(r.FinalBalance.Abs()), r.BalanceLabel())
	}
	logger.Info("document written",
		zap.String("settlement_id", *settlementID),
		zap.String("path", path),
		zap.Int("tenants", len(comp.Results)),
	)
	return nil
}
