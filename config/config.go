// Package config loads the appliance configuration: a YAML file,
// optionally an env file next to it, with environment variables taking
// precedence over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/shlex"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath    = "/etc/piclone/config.yaml"
	DefaultEnvFile = "piclone.env"
)

type Config struct {
	// LogLevel is a zerolog level name; defaults to info.
	LogLevel string `yaml:"log_level"`
	// DefaultCloneMode and DefaultEraseMode preselect the menu entries.
	DefaultCloneMode string `yaml:"default_clone_mode"`
	DefaultEraseMode string `yaml:"default_erase_mode"`
	// QuickWipeMiB overrides how much the quick erase zero-fills at the
	// device head and tail.
	QuickWipeMiB int64 `yaml:"quick_wipe_mib"`
	// ToolOverrides replaces the command line prefix used for a tool,
	// e.g. dd: "ionice -c3 dd". Parsed with shlex.
	ToolOverrides map[string]string `yaml:"tool_overrides"`
}

func Default() *Config {
	return &Config{
		LogLevel:         "info",
		DefaultCloneMode: "smart",
		DefaultEraseMode: "quick",
		QuickWipeMiB:     32,
	}
}

// Load reads the config file at path (DefaultPath when empty). A missing
// file is not an error; the defaults apply. An env file next to the config
// and process environment variables override file values, in that order.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	envFile := filepath.Join(filepath.Dir(path), DefaultEnvFile)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("PICLONE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PICLONE_CLONE_MODE"); v != "" {
		cfg.DefaultCloneMode = v
	}
	if v := os.Getenv("PICLONE_ERASE_MODE"); v != "" {
		cfg.DefaultEraseMode = v
	}
	if v := os.Getenv("PICLONE_QUICK_WIPE_MIB"); v != "" {
		mib, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing PICLONE_QUICK_WIPE_MIB: %w", err)
		}
		cfg.QuickWipeMiB = mib
	}

	return cfg, nil
}

// RunnerOverrides splits the configured tool overrides into the argv
// prefixes the command runner consumes.
func (c *Config) RunnerOverrides() (map[string][]string, error) {
	if len(c.ToolOverrides) == 0 {
		return nil, nil
	}
	overrides := make(map[string][]string, len(c.ToolOverrides))
	for tool, cmdline := range c.ToolOverrides {
		argv, err := shlex.Split(cmdline)
		if err != nil {
			return nil, fmt.Errorf("parsing override for %s: %w", tool, err)
		}
		if len(argv) == 0 {
			return nil, fmt.Errorf("empty override for %s", tool)
		}
		overrides[tool] = argv
	}
	return overrides, nil
}
