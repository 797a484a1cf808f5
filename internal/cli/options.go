package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/hitch/internal/config"
	"github.com/aretw0/hitch/internal/logging"
)

// Options are the settings shared by every command.
type Options struct {
	ConfigPath string
	// StoreDriver and StorePath override the config file when set.
	StoreDriver string
	StorePath   string
	Debug       bool
	JSON        bool

	In  io.Reader
	Out io.Writer
}

func (o Options) stdin() io.Reader {
	if o.In == nil {
		return os.Stdin
	}
	return o.In
}

func (o Options) stdout() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// LoadConfig reads the config file and applies flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.StoreDriver != "" {
		cfg.Store.Driver = opts.StoreDriver
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createLogger configures the application logger.
// Outside debug mode only warnings reach Stderr, so they do not mix with the conversation.
func createLogger(cfg *config.Config, debug bool) *slog.Logger {
	level := logging.ParseLevel(cfg.Log.Level)
	if !debug && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if cfg.Log.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
