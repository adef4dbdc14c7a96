package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	defaultServer   = "http://localhost:5000/api/v1"
	defaultTimeout  = 15 * time.Second
	defaultLogLevel = "warn"
	appDirName      = "quickfold"
)

// cliConfig is the client configuration. Values come from the YAML config
// file, overridden by any flag set on the command line.
type cliConfig struct {
	Server   string        `koanf:"server"`
	Session  string        `koanf:"session"`
	Timeout  time.Duration `koanf:"timeout"`
	LogLevel string        `koanf:"log-level"`
}

// registerGlobalFlags adds the flags every subcommand understands.
func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/quickfold/config.yaml)")
	flags.String("server", defaultServer, "API base URL")
	flags.String("session", "", "session database path (default $XDG_CONFIG_HOME/quickfold/session.db)")
	flags.Duration("timeout", defaultTimeout, "request timeout")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
}

// loadConfig layers the config file under the command-line flags. A missing
// default config file is not an error; a missing explicit one is.
func loadConfig(flags *pflag.FlagSet) (*cliConfig, error) {
	k := koanf.New(".")

	path, explicit, err := configPath(flags)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg cliConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Session == "" {
		dir, err := appDir()
		if err != nil {
			return nil, err
		}
		cfg.Session = filepath.Join(dir, "session.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *cliConfig) validate() error {
	var errs []error
	if c.Server == "" {
		errs = append(errs, errors.New("server must not be empty"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

func configPath(flags *pflag.FlagSet) (path string, explicit bool, err error) {
	if p, _ := flags.GetString("config"); p != "" {
		return p, true, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		// No home directory: run on flags alone.
		return "", false, nil
	}
	return filepath.Join(dir, appDirName, "config.yaml"), false, nil
}

func appDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	dir = filepath.Join(dir, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
