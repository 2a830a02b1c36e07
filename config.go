package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type config struct {
	SnapshotPath string `yaml:"snapshot_path"`
	BackupPath   string `yaml:"backup_path"`
	ExportDir    string `yaml:"export_dir"`
	MetricsAddr  string `yaml:"metrics_addr"` // empty disables the listener
}

// loadConfig reads the environment, then overlays the yaml file named by
// LEDGER_CONFIG when set.
func loadConfig() (config, error) {
	cfg := config{
		SnapshotPath: getenvDefault("LEDGER_SNAPSHOT_PATH", filepath.FromSlash("var/ledger.db")),
		BackupPath:   getenvDefault("LEDGER_BACKUP_PATH", filepath.FromSlash("var/base_centrale.xlsx")),
		ExportDir:    getenvDefault("LEDGER_EXPORT_DIR", "var"),
		MetricsAddr:  getenvDefault("LEDGER_METRICS_ADDR", ""),
	}

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
