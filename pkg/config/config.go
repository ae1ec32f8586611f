// Package config loads tool-wide defaults for the udfkit command-line
// frontends (SPEC_FULL.md's CLI/tool configuration layer): default block
// size probing, the fixer's default repair policy, and whether
// non-interactive ("CI") use implies --force. It is read once at startup
// and handed down as option.OpenOption/option.FixPolicy values, never
// consulted again mid-run.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bgrewell/udf-kit/pkg/option"
	"github.com/spf13/viper"
)

// Config is the resolved set of tool defaults, merged from (in increasing
// priority) built-in defaults, a config file, and UDFKIT_* environment
// variables. CLI flags, when present, override whatever Config supplies.
type Config struct {
	BlockSize uint32 // 0 means "probe the usual candidates"
	FixPolicy string // "report", "autofix", or "interactive"
	Force     bool   // imply non-interactive autofix-or-report, never prompt
	Color     bool
	LogLevel  string // "info", "debug", or "trace"
}

func defaults() Config {
	return Config{
		BlockSize: 0,
		FixPolicy: "report",
		Force:     false,
		Color:     true,
		LogLevel:  "info",
	}
}

// Load resolves a Config, searching for a "udfkit" config file (yaml, toml,
// or json) in the current directory, $HOME/.config/udfkit, and /etc/udfkit
// unless explicitPath names one directly. A missing config file is not an
// error; a malformed one is.
func Load(explicitPath string) (Config, error) {
	d := defaults()

	v := viper.New()
	v.SetEnvPrefix("UDFKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("block-size", d.BlockSize)
	v.SetDefault("fix-policy", d.FixPolicy)
	v.SetDefault("force", d.Force)
	v.SetDefault("color", d.Color)
	v.SetDefault("log-level", d.LogLevel)

	// An explicit path that doesn't exist is treated the same as "no config
	// file found" rather than an error: viper.ConfigFileNotFoundError is
	// only raised for its own search-path lookup, not for SetConfigFile.
	skip := false
	switch {
	case explicitPath != "":
		if _, err := os.Stat(explicitPath); err != nil {
			skip = true
		} else {
			v.SetConfigFile(explicitPath)
		}
	default:
		v.SetConfigName("udfkit")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/udfkit")
		v.AddConfigPath("/etc/udfkit")
	}

	if !skip {
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	return Config{
		BlockSize: v.GetUint32("block-size"),
		FixPolicy: v.GetString("fix-policy"),
		Force:     v.GetBool("force"),
		Color:     v.GetBool("color"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// Policy resolves the configured fix policy string to an option.FixPolicy,
// folding Force into AutoFix when the configured policy is "interactive"
// (a non-interactive run has nobody to prompt).
func (c Config) Policy() option.FixPolicy {
	switch strings.ToLower(c.FixPolicy) {
	case "autofix", "auto":
		return option.AutoFix
	case "interactive":
		if c.Force {
			return option.AutoFix
		}
		return option.Interactive
	default:
		return option.ReportOnly
	}
}

// OpenOptions builds the option.OpenOption list ReadDisc should be called
// with, carrying over only the fields the caller hasn't already overridden
// on the command line (blockSizeOverride == 0 means "use the config's").
func (c Config) OpenOptions(blockSizeOverride uint32) []option.OpenOption {
	var opts []option.OpenOption
	bs := c.BlockSize
	if blockSizeOverride != 0 {
		bs = blockSizeOverride
	}
	if bs != 0 {
		opts = append(opts, option.WithBlockSize(bs))
	}
	return opts
}
