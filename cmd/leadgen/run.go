package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/gateway"
	"leadgen-engine/internal/outreach"
	"leadgen-engine/internal/pipeline"
	"leadgen-engine/internal/registry"
	"leadgen-engine/internal/scrape/alerts"
	"leadgen-engine/internal/scrape/finn"
	"leadgen-engine/internal/scrape/nav"
	"leadgen-engine/internal/scrape/types"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/scrape/website"
	"leadgen-engine/internal/secrets"
	"leadgen-engine/internal/store"
)

const userAgent = "leadgen-engine/1.0"

var (
	runSources  []string
	runKeywords []string
	runMaxPages int
	runDry      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run",
	Long: "Collect postings from the enabled sources, filter against the ledger,\n" +
		"enrich and verify new contacts, and hand valid ones off for outreach.\n\n" +
		"Exit codes: 0 clean, 1 hard failure, 2 completed with partial failures.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runSources, "sources", nil, "override enabled sources (finn,nav,alerts)")
	runCmd.Flags().StringSliceVar(&runKeywords, "keywords", nil, "override configured keywords")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 2, "result pages per keyword per board")
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "skip the outreach handoff; contacts are still stored")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock, err := acquireRunLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := executePipeline(ctx, cfg)
	if err != nil {
		return err
	}
	exitCode = runExitCode(stats)
	if exitCode != 0 {
		log.Printf("[run] completed with partial failures")
	}
	return nil
}

// runExitCode maps a completed run to the process exit status: 0 clean,
// 2 completed with partial failures. Hard failures exit 1 via RunE.
func runExitCode(stats *domain.RunStats) int {
	if stats.PartialFailure() {
		return 2
	}
	return 0
}

// acquireRunLock takes the per-data-dir lock. Concurrent runs would race on
// the ledger and double-spend gateway credits.
func acquireRunLock(cfg config.Config) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(cfg.App.DataDir, "leadgen.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is already in progress (lock %s held)", lock.Path())
	}
	return lock, nil
}

// executePipeline assembles every collaborator from config and runs the
// pipeline once. The ledger is opened per run so a long-lived daemon never
// holds a stale handle.
func executePipeline(ctx context.Context, cfg config.Config) (*domain.RunStats, error) {
	if len(runKeywords) > 0 {
		cfg.Run.Keywords = runKeywords
	}

	db, err := store.Open(filepath.Join(cfg.App.DataDir, "leadgen.db"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	secret, err := secrets.GatewaySecret(cfg.Gateway.ClientID)
	if err != nil {
		return nil, err
	}
	gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, secret, cfg.Gateway.RequestsPerMin)
	reg := registry.New(cfg.Registry.BaseURL, cfg.Registry.RequestsPerSec)
	web := website.New(userAgent)

	fetchers, err := buildFetchers(cfg)
	if err != nil {
		return nil, err
	}
	if len(fetchers) == 0 {
		return nil, fmt.Errorf("no sources to run")
	}

	var handoff outreach.Handoff = outreach.LogHandoff{}
	if !runDry && (cfg.Gateway.ListID != "" || cfg.Gateway.ListName != "") {
		handoff = outreach.NewListHandoff(gw, cfg.Gateway.ListName, cfg.Gateway.ListID)
	}

	pl := pipeline.New(cfg, db, fetchers, gw, reg, web, handoff)
	return pl.Run(ctx)
}

// buildFetchers assembles the source adapters, honoring the --sources
// override when given and the config toggles otherwise.
func buildFetchers(cfg config.Config) ([]types.Fetcher, error) {
	override := map[string]bool{}
	for _, s := range runSources {
		override[strings.ToLower(strings.TrimSpace(s))] = true
	}
	enabled := func(name string, cfgEnabled bool) bool {
		if len(override) > 0 {
			return override[name]
		}
		return cfgEnabled
	}

	// Shared so finn and nav stay polite even when scraping in parallel.
	limiter := util.NewHostLimiter(1, 1)

	var fetchers []types.Fetcher
	if enabled("finn", cfg.Sources.Finn.Enabled) {
		fetchers = append(fetchers, finn.New(finn.Config{MaxPages: runMaxPages}, limiter))
	}
	if enabled("nav", cfg.Sources.Nav.Enabled) {
		fetchers = append(fetchers, nav.New(nav.Config{MaxPages: runMaxPages}, limiter))
	}
	if enabled("alerts", cfg.Sources.Alerts.Enabled) {
		pw, err := secrets.IMAPPassword(cfg.Sources.Alerts.Username, cfg.Sources.Alerts.IMAPHost)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, &alerts.Fetcher{Cfg: cfg.Sources.Alerts, Password: pw})
	}
	return fetchers, nil
}
