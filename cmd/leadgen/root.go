package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"leadgen-engine/internal/config"
)

var (
	cfgPath string
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "leadgen",
	Short: "Job-posting lead generation pipeline",
	Long: "leadgen scrapes Norwegian job boards for postings matching your keywords,\n" +
		"enriches the companies behind them, and discovers verified contact emails\n" +
		"for outreach.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: <data-dir>/config.yml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: LEADGEN_DATA_DIR env var or .)")
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if env := os.Getenv("LEADGEN_DATA_DIR"); env != "" {
		return env
	}
	return "."
}

// loadConfig bootstraps <data-dir>/config.yml from the shipped default on
// first run (unless --config points elsewhere), then loads and validates it.
func loadConfig() (config.Config, error) {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return config.Config{}, err
	}

	path := cfgPath
	if path == "" {
		var err error
		path, err = config.EnsureUserConfig(dir, filepath.Join("config", "config.yml"))
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err = config.NormalizeAndValidate(cfg)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dir
	}
	return cfg, nil
}
