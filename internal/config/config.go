package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RunConfig is the top-level fixctl.toml shape.
type RunConfig struct {
	Fix          FixConfig             `toml:"fix"`
	Tools        map[string]ToolConfig `toml:"tools"`
	CommandTools []CommandToolConfig   `toml:"command_tool"`
}

// FixConfig carries the run-wide options.
type FixConfig struct {
	Only           []string `toml:"only"`
	SkipFormatters bool     `toml:"skip_formatters"`
	Workers        int      `toml:"workers"`
	SnapshotCache  int      `toml:"snapshot_cache"`
}

// ToolConfig is per-tool configuration keyed by tool name.
type ToolConfig struct {
	Skip bool `toml:"skip"`
}

// CommandToolConfig declares a tool backed by an external binary.
type CommandToolConfig struct {
	Name     string   `toml:"name"`
	Category string   `toml:"category"`
	Requires []string `toml:"requires"`
	Bin      string   `toml:"bin"`
	Args     []string `toml:"args"`
}

// Default returns the built-in configuration used when no file is given.
func Default() RunConfig {
	return RunConfig{
		Fix: FixConfig{Workers: 4, SnapshotCache: 4096},
	}
}

// Load reads and validates a fixctl.toml. Missing optional fields fall
// back to defaults.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if cfg.Fix.Workers <= 0 {
		cfg.Fix.Workers = 4
	}
	if cfg.Fix.SnapshotCache <= 0 {
		cfg.Fix.SnapshotCache = 4096
	}
	if err := Validate(cfg); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate enforces the fields required to build a registry.
func Validate(cfg RunConfig) error {
	for name := range cfg.Tools {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tools entry with empty name")
		}
	}
	for i, ct := range cfg.CommandTools {
		if strings.TrimSpace(ct.Name) == "" {
			return fmt.Errorf("command_tool[%d]: name is required", i)
		}
		if strings.TrimSpace(ct.Bin) == "" {
			return fmt.Errorf("command_tool[%d] %q: bin is required", i, ct.Name)
		}
		switch strings.ToLower(strings.TrimSpace(ct.Category)) {
		case "fixer", "formatter":
		default:
			return fmt.Errorf("command_tool[%d] %q: category must be fixer or formatter", i, ct.Name)
		}
	}
	return nil
}

// Skip reports whether the named tool is configured off.
func (c RunConfig) Skip(name string) bool {
	tc, ok := c.Tools[name]
	return ok && tc.Skip
}
