// Package config loads the abpshell configuration file. The format is
// line oriented: "optionName rest of the line is the value", with "#"
// comments, plus a [filters] section whose lines are filter rules
// preloaded into the engine at startup.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config is the parsed abpshell configuration.
type Config struct {
	// Options are the top-level option lines.
	Options map[string]string
	// Filters are the rules listed in the [filters] section, in file
	// order.
	Filters []string
}

// NewConfig creates an empty configuration.
func NewConfig() *Config {
	return &Config{Options: make(map[string]string)}
}

// Path returns the configuration file path: the ABPSHELL_CONFIG
// environment variable if set, otherwise ~/.abpshell/config.
func Path() (string, error) {
	if path := os.Getenv("ABPSHELL_CONFIG"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".abpshell", "config"), nil
}

// Load loads the configuration from the default path. A missing file
// yields an empty configuration.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads the configuration from path. Symlinked config
// files are rejected so the file read is always the file named.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses configuration from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := NewConfig()
	scanner := bufio.NewScanner(r)

	var inFilters bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.Trim(line, "[]")
			if section != "filters" {
				return nil, fmt.Errorf("unknown config section %q", section)
			}
			inFilters = true
			continue
		}

		if inFilters {
			cfg.Filters = append(cfg.Filters, line)
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		cfg.Options[name] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return cfg, nil
}

// Option returns a top-level option value.
func (c *Config) Option(name string) (string, bool) {
	value, ok := c.Options[name]
	return value, ok
}

// BoolOption returns a boolean option, or def when the option is
// missing or malformed.
func (c *Config) BoolOption(name string, def bool) bool {
	value, ok := c.Options[name]
	if !ok {
		return def
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}
