package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type SourceConfig struct {
	Enabled bool `yaml:"enabled"`
}

type AlertsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	IMAPHost     string `yaml:"imap_host"`
	IMAPPort     int    `yaml:"imap_port"`
	Username     string `yaml:"username"`
	MaxMessages  int    `yaml:"max_messages"`
	SubjectMatch string `yaml:"subject_match"`
}

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Run struct {
		Keywords        []string `yaml:"keywords"`
		TargetPositions []string `yaml:"target_positions"`
		SourceSeconds   int      `yaml:"source_timeout_seconds"`
	} `yaml:"run"`

	Sources struct {
		Finn   SourceConfig `yaml:"finn"`
		Nav    SourceConfig `yaml:"nav"`
		Alerts AlertsConfig `yaml:"alerts"`
	} `yaml:"sources"`

	Gateway struct {
		BaseURL        string `yaml:"base_url"`
		ClientID       string `yaml:"client_id"`
		RequestsPerMin int    `yaml:"requests_per_minute"`
		RetryBudget    int    `yaml:"retry_budget"`
		ListName       string `yaml:"list_name"`
		ListID         string `yaml:"list_id"`
	} `yaml:"gateway"`

	Registry struct {
		BaseURL        string  `yaml:"base_url"`
		RequestsPerSec float64 `yaml:"requests_per_second"`
	} `yaml:"registry"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
