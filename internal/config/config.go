// Package config loads MiniSOC's YAML configuration with
// defaults that make a missing config file produce a usable App.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Logging controls the structured logger. The daemons log to stdout/stderr
// only, so just Level is consulted; Dir/MaxBytes/Backups are accepted for
// compatibility with older config files and otherwise ignored.
type Logging struct {
	Level    string `mapstructure:"level" yaml:"level"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	MaxBytes int    `mapstructure:"max_bytes" yaml:"max_bytes"`
	Backups  int    `mapstructure:"backups" yaml:"backups"`
}

// Server controls the HTTP ingest/query surface and its storage.
type Server struct {
	BindHost string `mapstructure:"bind_host" yaml:"bind_host"`
	BindPort int    `mapstructure:"bind_port" yaml:"bind_port"`
	DBPath   string `mapstructure:"db_path" yaml:"db_path"`
	JSONLDir string `mapstructure:"jsonl_dir" yaml:"jsonl_dir"`
}

// Agent controls the log-tailing agent.
type Agent struct {
	HostName      string   `mapstructure:"host_name" yaml:"host_name"`
	TailPaths     []string `mapstructure:"tail_paths" yaml:"tail_paths"`
	ServerURL     string   `mapstructure:"server_url" yaml:"server_url"`
	PollIntervalS float64  `mapstructure:"poll_interval_s" yaml:"poll_interval_s"`
	// StatsdAddr, if set, mirrors the agent's read/parsed/sent/failed
	// counters to a statsd listener alongside the heartbeat log line.
	// Empty (the default) keeps the emitter a no-op.
	StatsdAddr string `mapstructure:"statsd_addr" yaml:"statsd_addr"`
}

// App is the top-level config document.
type App struct {
	Logging Logging `mapstructure:"logging" yaml:"logging"`
	Server  Server  `mapstructure:"server" yaml:"server"`
	Agent   Agent   `mapstructure:"agent" yaml:"agent"`
}

func defaults() App {
	return App{
		Logging: Logging{Level: "INFO", Dir: "./var/log", MaxBytes: 5_000_000, Backups: 3},
		Server: Server{
			BindHost: "127.0.0.1",
			BindPort: 8080,
			DBPath:   "./var/minisoc.db",
			JSONLDir: "./var/jsonl",
		},
		Agent: Agent{
			HostName:      "localhost",
			TailPaths:     []string{"/var/log/auth.log", "/var/log/syslog"},
			ServerURL:     "http://127.0.0.1:8080",
			PollIntervalS: 0.5,
		},
	}
}

// Load reads path as YAML into an App, seeded with defaults. A missing
// file is not an error; it yields the defaults, so the daemons start even
// before a config has been written.
func Load(path string) (App, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return App{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return App{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}
