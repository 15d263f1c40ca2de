// Package config provides tool-level configuration types and defaults for
// projector. This governs how the CLI behaves (external tool paths, batch
// submission options, default run mode); the analysis documents themselves
// are loaded by internal/library and internal/project.
package config

import (
	"fmt"
	"sort"
)

// Config holds all tool-level configuration options for projector.
type Config struct {
	CeciBin string              `mapstructure:"ceci_bin"` // pipeline-runner executable
	RunMode string              `mapstructure:"run_mode"` // default run mode: dry_run, bash or slurm
	Site    string              `mapstructure:"site"`     // default batch site
	LogFile string              `mapstructure:"log_file"` // debug log path
	Sites   map[string][]string `mapstructure:"sites"`    // site name -> sbatch flags
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		CeciBin: "ceci",
		RunMode: "bash",
		Site:    "s3df",
		LogFile: "projector.log",
		Sites: map[string][]string{
			"s3df": {
				"-p", "milano",
				"--account", "rubin:commissioning@milano",
				"--mem", "16G",
				"--parsable",
			},
			"perlmutter": {
				"--account", "m1727",
				"--constraint", "cpu",
				"--qos", "regular",
				"--parsable",
			},
		},
	}
}

// SiteArgs returns the sbatch flags for a site. An unknown site is an error
// listing the configured sites.
func (c Config) SiteArgs(site string) ([]string, error) {
	args, ok := c.Sites[site]
	if !ok {
		names := make([]string, 0, len(c.Sites))
		for name := range c.Sites {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%q is not a recognized site, options are %v", site, names)
	}
	return args, nil
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	switch c.RunMode {
	case "dry_run", "bash", "slurm":
	default:
		return fmt.Errorf("run_mode must be one of dry_run, bash, slurm, got %q", c.RunMode)
	}
	if c.CeciBin == "" {
		return fmt.Errorf("ceci_bin is required")
	}
	if c.RunMode == "slurm" {
		if _, err := c.SiteArgs(c.Site); err != nil {
			return err
		}
	}
	return nil
}
