// Package config loads the interpreter's optional teenyjvm.toml file.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const fileName = "teenyjvm.toml"

// Config holds the settings teenyjvm.toml may override. The command line
// flags documented by cmd/teenyjvm take precedence over anything loaded
// here.
type Config struct {
	VM VM `toml:"vm"`

	// Dir is the directory the config file was read from. Empty when
	// Default is in use.
	Dir string `toml:"-"`
}

// VM configures the execution engine.
type VM struct {
	GasLimit  int    `toml:"gas_limit"`
	Trace     bool   `toml:"trace"`
	Classpath string `toml:"classpath"`
}

// Default is the configuration used when no teenyjvm.toml is found.
func Default() *Config {
	return &Config{}
}

// Load parses teenyjvm.toml from dir. A missing file is not an error; it
// returns Default().
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, fileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "config: resolving %s", dir)
	}
	return &c, nil
}
