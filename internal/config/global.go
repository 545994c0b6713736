// Where: internal/config/global.go
// What: Global config load/save helpers.
// Why: Manage ~/.mdpack/config.yaml consistently.
package config

import (
	"os"
	"path/filepath"

	"github.com/poruru/mdpack/internal/envutil"
	"github.com/poruru/mdpack/internal/meta"
	"gopkg.in/yaml.v3"
)

const (
	hostSuffixConfigPath = "CONFIG_PATH"
	hostSuffixConfigHome = "CONFIG_HOME"
)

// GlobalConfig represents the ~/.mdpack/config.yaml global configuration.
// Every field is a default that command-line flags and MDPACK_* variables override.
type GlobalConfig struct {
	Version         int           `yaml:"version"`
	Root            string        `yaml:"root,omitempty"`
	WorkDir         string        `yaml:"work_dir,omitempty"`
	SkipTests       bool          `yaml:"skip_tests,omitempty"`
	RequireArtifact bool          `yaml:"require_artifact,omitempty"`
	Publish         PublishConfig `yaml:"publish,omitempty"`
}

// PublishConfig selects the S3-compatible destination of delivered packages.
type PublishConfig struct {
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Region   string `yaml:"region,omitempty"`

	IndexTable    string `yaml:"index_table,omitempty"`
	IndexEndpoint string `yaml:"index_endpoint,omitempty"`
}

// DefaultGlobalConfig returns an initialized GlobalConfig with version set.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{Version: 1}
}

// GlobalConfigPath returns the path to the global config file.
// Respects MDPACK_CONFIG_PATH and MDPACK_CONFIG_HOME.
func GlobalConfigPath() (string, error) {
	if override := envutil.GetHostEnv(hostSuffixConfigPath); override != "" {
		path := override
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		return path, nil
	}
	if override := envutil.GetHostEnv(hostSuffixConfigHome); override != "" {
		return filepath.Join(override, "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, meta.HomeDir, "config.yaml"), nil
}

// LoadGlobalConfig reads and parses the global configuration file.
// A missing file yields the defaults.
func LoadGlobalConfig(path string) (GlobalConfig, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGlobalConfig(), nil
		}
		return GlobalConfig{}, err
	}

	cfg := DefaultGlobalConfig()
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return GlobalConfig{}, err
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	return cfg, nil
}

// SaveGlobalConfig writes a GlobalConfig to the specified path.
func SaveGlobalConfig(path string, cfg GlobalConfig) error {
	payload, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, payload, 0o644)
}
