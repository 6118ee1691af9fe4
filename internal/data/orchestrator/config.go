// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nicodishanthj/rfpassist/internal/kb"
	"github.com/nicodishanthj/rfpassist/internal/sqlite"
)

const defaultMaxUploadBytes int64 = 32 << 20

// Config controls where the application keeps its files and database and how
// drafts are grounded.
type Config struct {
	StorageDir     string `yaml:"storage_dir"`
	DatabasePath   string `yaml:"database_path"`
	KBDir          string `yaml:"kb_dir"`
	KBMaxChars     int    `yaml:"kb_max_chars"`
	HouseRules     string `yaml:"house_rules"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		StorageDir:     "storage",
		DatabasePath:   "rfp.db",
		KBDir:          "fedramp_kb",
		KBMaxChars:     kb.DefaultMaxChars,
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

// Merge returns c with every non-zero field of override applied.
func (c Config) Merge(override Config) Config {
	result := c
	if v := strings.TrimSpace(override.StorageDir); v != "" {
		result.StorageDir = v
	}
	if v := strings.TrimSpace(override.DatabasePath); v != "" {
		result.DatabasePath = v
	}
	if v := strings.TrimSpace(override.KBDir); v != "" {
		result.KBDir = v
	}
	if override.KBMaxChars > 0 {
		result.KBMaxChars = override.KBMaxChars
	}
	if v := strings.TrimSpace(override.HouseRules); v != "" {
		result.HouseRules = v
	}
	if override.MaxUploadBytes > 0 {
		result.MaxUploadBytes = override.MaxUploadBytes
	}
	return result
}

// LoadConfig builds a Config from defaults, the optional YAML file named by
// RFP_CONFIG_FILE and environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("RFP_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	return applyDefaults(cfg), nil
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.DatabasePath != "" {
		if cfg.DatabasePath, err = sqlite.PathFromURL(cfg.DatabasePath); err != nil {
			return Config{}, fmt.Errorf("parse database_path: %w", err)
		}
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	cfg.StorageDir = strings.TrimSpace(os.Getenv("RFP_STORAGE_DIR"))
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		path, err := sqlite.PathFromURL(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		cfg.DatabasePath = path
	}
	if value := strings.TrimSpace(os.Getenv("RFP_DATABASE_PATH")); value != "" {
		cfg.DatabasePath = value
	}
	cfg.KBDir = strings.TrimSpace(os.Getenv("RFP_KB_DIR"))
	if value := strings.TrimSpace(os.Getenv("RFP_KB_MAX_CHARS")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse RFP_KB_MAX_CHARS: %w", err)
		}
		cfg.KBMaxChars = n
	}
	cfg.HouseRules = strings.TrimSpace(os.Getenv("RFP_HOUSE_RULES"))
	if value := strings.TrimSpace(os.Getenv("RFP_MAX_UPLOAD_BYTES")); value != "" {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse RFP_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	return DefaultConfig().Merge(cfg)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.StorageDir) == "" {
		return fmt.Errorf("storage dir required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database path required")
	}
	if c.KBMaxChars <= 0 {
		return fmt.Errorf("kb max chars must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	return nil
}
