// Package config loads settings for the process-wide deferdrop bin.
//
// Settings come from defaults, then an optional TOML file, then the
// environment:
//
//	name = "deferdrop"
//	policy = "supervisor"
//	queue_hint = 1024
//	log_level = "warn"
//
// Environment variables DEFERDROP_NAME, DEFERDROP_POLICY,
// DEFERDROP_QUEUE_HINT and DEFERDROP_LOG_LEVEL override the file.
package config

import (
	"github.com/BurntSushi/toml"
	jlconfig "github.com/JeremyLoy/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/NetPo4ki/go-deferdrop/deferdrop"
)

type Config struct {
	Name      string `toml:"name" config:"DEFERDROP_NAME"`
	Policy    string `toml:"policy" config:"DEFERDROP_POLICY"`
	QueueHint int64  `toml:"queue_hint" config:"DEFERDROP_QUEUE_HINT"`
	LogLevel  string `toml:"log_level" config:"DEFERDROP_LOG_LEVEL"`
}

func Default() Config {
	return Config{
		Name:      "deferdrop",
		Policy:    deferdrop.FailFast.String(),
		QueueHint: 64,
		LogLevel:  zerolog.InfoLevel.String(),
	}
}

// Load reads path (skipped when empty) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: decode %s", path)
		}
	}
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("config: name must not be empty")
	}
	if _, err := deferdrop.ParsePolicy(c.Policy); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.QueueHint < 0 {
		return errors.Errorf("config: queue_hint must not be negative, got %d", c.QueueHint)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "config: log_level")
	}
	return nil
}

// Options translates c into bin options, logging through base at the
// configured level.
func (c Config) Options(base zerolog.Logger) ([]deferdrop.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := deferdrop.ParsePolicy(c.Policy)
	level, _ := zerolog.ParseLevel(c.LogLevel)
	return []deferdrop.Option{
		deferdrop.WithName(c.Name),
		deferdrop.WithPolicy(policy),
		deferdrop.WithQueueHint(c.QueueHint),
		deferdrop.WithLogger(base.Level(level)),
	}, nil
}

// Apply configures the default bin, followed by any extra options. It takes
// effect when the default bin is next created.
func (c Config) Apply(base zerolog.Logger, extra ...deferdrop.Option) error {
	opts, err := c.Options(base)
	if err != nil {
		return err
	}
	deferdrop.Configure(append(opts, extra...)...)
	return nil
}
