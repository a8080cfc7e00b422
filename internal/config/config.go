package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfig = "ZIDRAW_CONFIG"
	EnvSecret = "JWT_SECRET"
)

type Config struct {
	// Listen is the address the server binds.
	Listen string `yaml:"listen"`

	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Store     StoreConfig     `yaml:"store"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Stats     StatsConfig     `yaml:"stats"`
}

type LogConfig struct {
	// Verbosity is the glog -v level.
	Verbosity int `yaml:"verbosity"`
}

type AuthConfig struct {
	// Secret is the HMAC key tokens are signed with.
	Secret string `yaml:"secret"`

	// SecretFile, when set, holds the key instead. The file is watched and
	// the key reloaded when it changes.
	SecretFile string `yaml:"secret_file"`
}

type StoreConfig struct {
	// Driver is one of: memory, sqlite, postgres, mysql, mongo.
	Driver string `yaml:"driver"`

	// DSN is the connection string. For sqlite it is a file path, for mongo
	// a mongodb:// uri.
	DSN string `yaml:"dsn"`

	// Database names the mongo database.
	Database string `yaml:"database"`
}

type TransportConfig struct {
	// SendBuffer is the number of frames queued per connection before
	// frames to that connection are dropped.
	SendBuffer int `yaml:"send_buffer"`

	WriteTimeout Duration `yaml:"write_timeout"`
	PingInterval Duration `yaml:"ping_interval"`

	// PongWait is how long a connection may stay silent before it is closed.
	// Must be longer than PingInterval.
	PongWait Duration `yaml:"pong_wait"`

	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

type DiscoveryConfig struct {
	// MDNS advertises the server on the local network.
	MDNS     bool   `yaml:"mdns"`
	Instance string `yaml:"instance"`
}

type StatsConfig struct {
	// Schedule is a cron spec for logging room stats. Empty disables it.
	Schedule string `yaml:"schedule"`
}

// Duration is a time.Duration written as a string ("5s") in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var drivers = []string{"memory", "sqlite", "postgres", "mysql", "mongo"}

func Default() *Config {
	return &Config{
		Listen: ":8080",
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "zidraw.db",
		},
		Transport: TransportConfig{
			SendBuffer:      256,
			WriteTimeout:    Duration(5 * time.Second),
			PingInterval:    Duration(30 * time.Second),
			PongWait:        Duration(60 * time.Second),
			MaxMessageBytes: 1 << 20,
		},
		Discovery: DiscoveryConfig{
			Instance: "zidraw",
		},
		Stats: StatsConfig{
			Schedule: "@every 1m",
		},
	}
}

// Load reads the file named by ZIDRAW_CONFIG, or only defaults and the
// environment when it is unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfig))
}

// LoadFile overlays the yaml at path (if any) on the defaults, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	cfg.applyEnvironment()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironment() {
	if secret := os.Getenv(EnvSecret); secret != "" {
		c.Auth.Secret = secret
	}
}

// Validate checks the settings the server needs. The client commands only
// need a subset and do not call it.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.Auth.Secret == "" && c.Auth.SecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.secret, auth.secret_file or %s is required", EnvSecret))
	}
	if !contains(drivers, c.Store.Driver) {
		errs = append(errs, fmt.Errorf("store.driver must be one of: %s", strings.Join(drivers, ", ")))
	}
	if c.Store.Driver == "mongo" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for mongo"))
	}
	if c.Transport.SendBuffer <= 0 {
		errs = append(errs, errors.New("transport.send_buffer must be positive"))
	}
	if c.Transport.PongWait <= c.Transport.PingInterval {
		errs = append(errs, errors.New("transport.pong_wait must be longer than transport.ping_interval"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
