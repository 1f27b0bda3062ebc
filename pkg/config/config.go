package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quidome/movrename-go/pkg/rename"
	"github.com/quidome/movrename-go/pkg/resolve"
	"github.com/quidome/movrename-go/pkg/scan"
)

// FileName is the configuration file looked up in the working directory
// and then in the user's home directory.
const FileName = ".movrename.yaml"

// Config carries the settings shared by all commands.
type Config struct {
	// Format is the strftime pattern for new file names.
	Format string `yaml:"format"`

	// Extensions is the extension alternation for file matching.
	Extensions string `yaml:"extensions"`

	// Mode is the timestamp resolution mode: default, system or advanced.
	Mode string `yaml:"mode"`

	// FixModTime also sets file modification times when renaming.
	FixModTime bool `yaml:"fix_mtime"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Format:     rename.DefaultFormat,
		Extensions: scan.DefaultExtensions,
		Mode:       string(resolve.ModeDefault),
	}
}

// Load returns the configuration for dir after applying defaults, the
// first configuration file found, and environment overrides.
func Load(dir string) (Config, error) {
	cfg := Default()

	if path, ok := findFile(dir); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		merge(&cfg, file)
	}

	fromEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findFile(dir string) (string, bool) {
	candidates := []string{filepath.Join(dir, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, FileName))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func merge(cfg *Config, file Config) {
	if value := strings.TrimSpace(file.Format); value != "" {
		cfg.Format = value
	}
	if value := strings.TrimSpace(file.Extensions); value != "" {
		cfg.Extensions = value
	}
	if value := strings.TrimSpace(file.Mode); value != "" {
		cfg.Mode = value
	}
	if file.FixModTime {
		cfg.FixModTime = true
	}
}

func fromEnv(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("MOVRENAME_FORMAT")); value != "" {
		cfg.Format = value
	}
	if value := strings.TrimSpace(os.Getenv("MOVRENAME_EXTENSIONS")); value != "" {
		cfg.Extensions = value
	}
	if value := strings.TrimSpace(os.Getenv("MOVRENAME_MODE")); value != "" {
		cfg.Mode = value
	}
	if value := strings.TrimSpace(os.Getenv("MOVRENAME_FIX_MTIME")); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			cfg.FixModTime = b
		}
	}
}

func (c Config) validate() error {
	switch resolve.Mode(c.Mode) {
	case resolve.ModeDefault, resolve.ModeSystem, resolve.ModeAdvanced:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if _, err := scan.Pattern(c.Extensions); err != nil {
		return err
	}
	if _, err := rename.NewFormatter(c.Format); err != nil {
		return err
	}
	return nil
}
