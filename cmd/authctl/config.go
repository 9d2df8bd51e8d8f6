package main

import (
	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/password"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// addCostFlags binds argon2id cost flags, defaulting to the service defaults.
func addCostFlags(fs *pflag.FlagSet) *password.Config {
	d := authcore.DefaultConfig().Password
	cfg := &password.Config{
		SaltLength:       d.SaltLength,
		KeyLength:        d.KeyLength,
		MaxPasswordBytes: d.MaxPasswordBytes,
	}
	fs.Uint32Var(&cfg.Memory, "memory", d.Memory, "argon2id memory in KiB")
	fs.Uint32Var(&cfg.Time, "time", d.Time, "argon2id iterations")
	fs.Uint8Var(&cfg.Parallelism, "parallelism", d.Parallelism, "argon2id lanes")
	return cfg
}

// serviceFlags are shared by commands that need a configured Service.
type serviceFlags struct {
	configPath string
	verbose    bool
}

func (f *serviceFlags) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file (YAML, JSON or TOML); AUTHCORE_* env vars override")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log service events to stderr")
}

func (f *serviceFlags) logger(env *cliEnv) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(env.stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if f.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// build loads configuration and starts a service without account storage.
func (f *serviceFlags) build(env *cliEnv) (*authcore.Service, error) {
	cfg, err := authcore.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	return authcore.New().
		WithConfig(cfg).
		WithLogger(f.logger(env)).
		Build()
}
