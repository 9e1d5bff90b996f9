// Package config loads the meshchat process configuration from YAML files and
// MESHCHAT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// Node holds the chat listener and join settings
	Node NodeConfig `mapstructure:"node"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// HTTP configures the REST control API
	HTTP HTTPConfig `mapstructure:"http"`

	// GRPC configures the gRPC control service
	GRPC GRPCConfig `mapstructure:"grpc"`

	// History bounds the in-memory event history
	History HistoryConfig `mapstructure:"history"`
}

// NodeConfig defines the chat listener.
type NodeConfig struct {
	// Port the node accepts joiners on; 0 picks a free port
	Port int `mapstructure:"port"`
	// BindHost is the interface to listen on; empty means all interfaces
	BindHost string `mapstructure:"bind_host"`
	// AdvertiseAddress is the IP this node is known by when BindHost is unspecified
	AdvertiseAddress string `mapstructure:"advertise_address"`
	// Network: tcp, tcp4 or tcp6
	Network string `mapstructure:"network"`
	// ReadBufferSize is the chunk size of one socket read
	ReadBufferSize int `mapstructure:"read_buffer_size"`
	// DialTimeout bounds outbound connection attempts
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// Seeds are members tried in order on startup
	Seeds []string `mapstructure:"seeds"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// HTTPConfig defines the REST control API.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// Secret signs JWT tokens; a random one is generated when empty
	Secret string `mapstructure:"secret"`
	// NoAuth disables authentication for non-admin routes (development only)
	NoAuth bool `mapstructure:"no_auth"`
	// RateLimit is the sustained requests per second per client; 0 disables limiting
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GRPCConfig defines the gRPC control service.
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// HistoryConfig defines the in-memory event history.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Port:           5000,
			BindHost:       "",
			Network:        "tcp4",
			ReadBufferSize: 4096,
			DialTimeout:    10 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/meshchat.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		HTTP: HTTPConfig{
			Enabled:   true,
			Port:      8081,
			RateLimit: 20,
			RateBurst: 40,
		},
		GRPC: GRPCConfig{
			Enabled: false,
			Address: "127.0.0.1:9091",
		},
		History: HistoryConfig{
			Capacity: 1000,
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix MESHCHAT and `.`/`-` are replaced with `_`.
// Example: MESHCHAT_NODE_PORT=5001
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MESHCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("node.port", cfg.Node.Port)
	v.SetDefault("node.bind_host", cfg.Node.BindHost)
	v.SetDefault("node.advertise_address", cfg.Node.AdvertiseAddress)
	v.SetDefault("node.network", cfg.Node.Network)
	v.SetDefault("node.read_buffer_size", cfg.Node.ReadBufferSize)
	v.SetDefault("node.dial_timeout", cfg.Node.DialTimeout)
	v.SetDefault("node.seeds", cfg.Node.Seeds)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("http.enabled", cfg.HTTP.Enabled)
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.secret", cfg.HTTP.Secret)
	v.SetDefault("http.no_auth", cfg.HTTP.NoAuth)
	v.SetDefault("http.rate_limit", cfg.HTTP.RateLimit)
	v.SetDefault("http.rate_burst", cfg.HTTP.RateBurst)
	v.SetDefault("http.allowed_origins", cfg.HTTP.AllowedOrigins)
	v.SetDefault("grpc.enabled", cfg.GRPC.Enabled)
	v.SetDefault("grpc.address", cfg.GRPC.Address)
	v.SetDefault("history.capacity", cfg.History.Capacity)

	// Choose config file
	if path == "" {
		if envPath := os.Getenv("MESHCHAT_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("meshchat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".meshchat"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListenAddress returns the host:port the chat listener binds to
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Node.BindHost, strconv.Itoa(c.Node.Port))
}

// HTTPAddress returns the address of the REST control API
func (c *Config) HTTPAddress() string {
	return net.JoinHostPort(c.Node.BindHost, strconv.Itoa(c.HTTP.Port))
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Node.Port < 0 || c.Node.Port > 65535 {
		return fmt.Errorf("invalid node.port: %d", c.Node.Port)
	}
	if c.Node.AdvertiseAddress != "" {
		if _, err := netip.ParseAddr(c.Node.AdvertiseAddress); err != nil {
			return fmt.Errorf("invalid node.advertise_address: %w", err)
		}
	}
	c.Node.Network = strings.ToLower(strings.TrimSpace(c.Node.Network))

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("invalid http.port: %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("invalid http.rate_limit: %v", c.HTTP.RateLimit)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("invalid history.capacity: %d", c.History.Capacity)
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
