// Package config composes the gateway's settings from three layers —
// an optional TOML file, environment variables, and CLI flags — with
// flags taking precedence over environment, and environment over the
// TOML file's defaults.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Config is the fully resolved set of settings the gateway runs with.
type Config struct {
	Port            int
	ProxiesPath     string
	CachePath       string
	RotateInterval  time.Duration
	LogLevel        string
	ProbeTargetHost string
	ProbeTargetPort uint16
	DialTimeout     time.Duration
}

// fileDefaults mirrors the subset of Config a TOML file may override,
// using string/duration-text fields so a freshly zeroed struct never
// masks an unset flag.
type fileDefaults struct {
	Port           int    `toml:"port"`
	ProxiesPath    string `toml:"proxies_path"`
	RotateInterval string `toml:"rotate_interval"`
	LogLevel       string `toml:"log_level"`
	CachePath      string `toml:"cache_path"`
	Probe          struct {
		TargetHost  string `toml:"target_host"`
		TargetPort  int    `toml:"target_port"`
		DialTimeout string `toml:"dial_timeout"`
	} `toml:"probe"`
}

// envOverlay is processed by envconfig; every field is optional and,
// when present, overrides the TOML default for that setting.
type envOverlay struct {
	LogLevel        string `envconfig:"LOG_LEVEL"`
	CachePath       string `envconfig:"CACHE_PATH"`
	ProbeTargetHost string `envconfig:"PROBE_TARGET_HOST"`
	ProbeTargetPort int    `envconfig:"PROBE_TARGET_PORT"`
	DialTimeout     string `envconfig:"UPSTREAM_DIAL_TIMEOUT"`
}

// Load parses argv (flag.CommandLine style, via a dedicated FlagSet so
// repeated calls in tests don't collide) and layers TOML defaults and
// an env overlay underneath it. argv excludes the program name.
func Load(argv []string) (Config, error) {
	fs := flag.NewFlagSet("socksrotate", flag.ContinueOnError)

	port := fs.Int("port", 8080, "seed port for the first listener")
	fs.IntVar(port, "p", 8080, "seed port for the first listener (shorthand)")
	proxiesPath := fs.String("proxies-path", "proxies.txt", "candidate proxy list")
	rotateInterval := fs.Int("rotate-interval", 300, "rotation cadence in seconds; 0 disables rotation")
	configPath := fs.String("config", "", "optional TOML config file")
	cachePath := fs.String("cache-path", "", "override the validated-proxy cache file path")
	logLevel := fs.String("log-level", "", "slog level: debug, info, warn, error")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	var fd fileDefaults
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: failed to read %s: %w", *configPath, err)
		}
		if err := toml.Unmarshal(data, &fd); err != nil {
			return Config{}, fmt.Errorf("config: failed to parse %s: %w", *configPath, err)
		}
	}

	var env envOverlay
	if err := envconfig.Process("", &env); err != nil {
		return Config{}, fmt.Errorf("config: failed to process environment: %w", err)
	}

	cfg := Config{
		Port:            8080,
		ProxiesPath:     "proxies.txt",
		CachePath:       "checked_proxies.txt",
		RotateInterval:  300 * time.Second,
		LogLevel:        "info",
		ProbeTargetHost: "httpbin.org",
		ProbeTargetPort: 80,
		DialTimeout:     10 * time.Second,
	}

	if fd.Port != 0 {
		cfg.Port = fd.Port
	}
	if fd.ProxiesPath != "" {
		cfg.ProxiesPath = fd.ProxiesPath
	}
	if fd.CachePath != "" {
		cfg.CachePath = fd.CachePath
	}
	if fd.LogLevel != "" {
		cfg.LogLevel = fd.LogLevel
	}
	if fd.RotateInterval != "" {
		d, err := time.ParseDuration(withDefaultUnit(fd.RotateInterval))
		if err != nil {
			return Config{}, fmt.Errorf("config: bad rotate_interval %q: %w", fd.RotateInterval, err)
		}
		cfg.RotateInterval = d
	}
	if fd.Probe.TargetHost != "" {
		cfg.ProbeTargetHost = fd.Probe.TargetHost
	}
	if fd.Probe.TargetPort != 0 {
		cfg.ProbeTargetPort = uint16(fd.Probe.TargetPort)
	}
	if fd.Probe.DialTimeout != "" {
		d, err := time.ParseDuration(fd.Probe.DialTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: bad probe.dial_timeout %q: %w", fd.Probe.DialTimeout, err)
		}
		cfg.DialTimeout = d
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.CachePath != "" {
		cfg.CachePath = env.CachePath
	}
	if env.ProbeTargetHost != "" {
		cfg.ProbeTargetHost = env.ProbeTargetHost
	}
	if env.ProbeTargetPort != 0 {
		cfg.ProbeTargetPort = uint16(env.ProbeTargetPort)
	}
	if env.DialTimeout != "" {
		d, err := time.ParseDuration(env.DialTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: bad UPSTREAM_DIAL_TIMEOUT %q: %w", env.DialTimeout, err)
		}
		cfg.DialTimeout = d
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port", "p":
			cfg.Port = *port
		case "proxies-path":
			cfg.ProxiesPath = *proxiesPath
		case "rotate-interval":
			cfg.RotateInterval = time.Duration(*rotateInterval) * time.Second
		case "cache-path":
			cfg.CachePath = *cachePath
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	return cfg, nil
}

// withDefaultUnit lets a bare-integer TOML rotate_interval (matching the
// flag's plain-seconds convention) parse the same way the flag does.
func withDefaultUnit(s string) string {
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s + "s"
}

// SlogLevel maps the resolved LogLevel string to a slog.Level, falling
// back to Info and logging a warning for an unrecognized value.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "config: unrecognized log level %q, defaulting to info\n", c.LogLevel)
		return slog.LevelInfo
	}
}
