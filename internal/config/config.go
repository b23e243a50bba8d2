// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mstouv/internal/cli"
)

// Config is the optional YAML run configuration. Flags given explicitly on
// the command line always win; config values fill the rest.
type Config struct {
	Threads      int    `yaml:"threads"`
	BatchRows    int    `yaml:"batch_rows"`
	VisCol       string `yaml:"vis_col"`
	ResetWeights bool   `yaml:"reset_weights"`
	Object       string `yaml:"object"`
	Telescope    string `yaml:"telescope"`
	Instrument   string `yaml:"instrument"`
	Quiet        bool   `yaml:"quiet"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (Config, error) {
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.Threads < 0 {
		return c, fmt.Errorf("config %s: threads must be ≥ 0", path)
	}
	if c.BatchRows < 0 {
		return c, fmt.Errorf("config %s: batch_rows must be ≥ 0", path)
	}
	return c, nil
}

// Apply folds config values into opt for every flag the user did not set.
func Apply(opt *cli.Options, c Config) {
	if !opt.Explicit("threads") && c.Threads > 0 {
		opt.Threads = c.Threads
	}
	if !opt.Explicit("batch-rows") && c.BatchRows > 0 {
		opt.BatchRows = c.BatchRows
	}
	if !opt.Explicit("vis-col") && c.VisCol != "" {
		opt.VisCol = c.VisCol
	}
	if !opt.Explicit("reset-weights") && c.ResetWeights {
		opt.ResetWeights = true
	}
	if !opt.Explicit("object") && c.Object != "" {
		opt.Object = c.Object
	}
	if !opt.Explicit("telescope") && c.Telescope != "" {
		opt.Telescope = c.Telescope
	}
	if !opt.Explicit("instrument") && c.Instrument != "" {
		opt.Instrument = c.Instrument
	}
	if !opt.Explicit("quiet") && c.Quiet {
		opt.Quiet = true
	}
}
