package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Poll       PollConfig       `yaml:"poll"`
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`

	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ControllerConfig contains controller connection settings
type ControllerConfig struct {
	Host    string   `yaml:"host"`    // Set up on startup when not stored yet (optional)
	Port    int      `yaml:"port"`    // HTTP port of every controller (default: 80)
	Timeout Duration `yaml:"timeout"` // Per-request deadline (default: 5s)
}

// PollConfig contains polling settings
type PollConfig struct {
	Interval Duration `yaml:"interval"` // Time between poll cycles (default: 30s)
	Partial  bool     `yaml:"partial"`  // Keep groups that answered when others fail (default: false)
	Parallel int      `yaml:"parallel"` // Max concurrent group requests per cycle (default: 4)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig contains API server settings
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for the listener
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Log.Colors = true
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML, expanding ${VAR} references
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Config{Log: LogConfig{Colors: true}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Controller.Port == 0 {
		cfg.Controller.Port = 80
	}
	if cfg.Controller.Timeout == 0 {
		cfg.Controller.Timeout = Duration(5 * time.Second)
	}
	if cfg.Poll.Interval == 0 {
		cfg.Poll.Interval = Duration(30 * time.Second)
	}
	if cfg.Poll.Parallel <= 0 {
		cfg.Poll.Parallel = 4
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./melco.sqlite"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8099
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(10 * time.Second)
	}
}

func (c *Config) validate() error {
	if c.Controller.Port < 1 || c.Controller.Port > 65535 {
		return fmt.Errorf("controller.port must be between 1 and 65535, got %d", c.Controller.Port)
	}
	if c.Poll.Interval.Duration() < time.Second {
		return fmt.Errorf("poll.interval must be at least 1s, got %s", c.Poll.Interval.Duration())
	}
	if c.Controller.Timeout.Duration() < 0 {
		return fmt.Errorf("controller.timeout must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(parts[1]); ok {
			return val
		}
		return parts[2]
	})
}
