package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the project configuration file looked up by every
// command.
const ConfigFileName = "kquery.toml"

// Config is the content of a kquery.toml file. Flags override it.
type Config struct {
	// Schema is the directory of the CUE type definitions.
	Schema string `toml:"schema"`

	// Database is the SQLite store read by eval.
	Database string `toml:"database"`

	// Format is the default output format.
	Format string `toml:"format"`

	// RequireSymbols rejects accesses through contexts without a single
	// concrete type. Defaults to true.
	RequireSymbols *bool `toml:"require_symbols"`

	// Params holds default parameter values, written as on the command line.
	Params map[string]any `toml:"params"`

	// Dir is the directory of the file; relative paths are resolved against
	// it.
	Dir string `toml:"-"`
}

// LoadConfig loads a kquery.toml file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("parsing %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	cfg.Dir = filepath.Dir(path)
	cfg.Schema = cfg.resolve(cfg.Schema)
	cfg.Database = cfg.resolve(cfg.Database)
	return &cfg, nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// FindConfig searches for a kquery.toml file starting from dir and walking
// up to parent directories, stopping at a .git boundary. Returns the path and
// the parsed config, or ("", nil, nil) if not found.
func FindConfig(dir string) (string, *Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadConfig(path)
			if err != nil {
				return "", nil, err
			}
			return path, cfg, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}
