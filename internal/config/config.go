package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/goveed/internal/device"
	"github.com/dokzlo13/goveed/internal/govee/transport"
)

// Config represents the application configuration
type Config struct {
	Govee           GoveeConfig       `yaml:"govee"`
	Delivery        DeliveryConfig    `yaml:"delivery"`
	Fade            FadeConfig        `yaml:"fade"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	API             APIConfig         `yaml:"api"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Script          string            `yaml:"script"`           // Lua script path, empty = no scripting
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// GoveeConfig contains device and LAN listener settings
type GoveeConfig struct {
	Devices           []DeviceConfig `yaml:"devices"`            // Statically known devices
	BindAddr          string         `yaml:"bind_addr"`          // Local address of the command socket (default: 0.0.0.0:0)
	ReplyAddr         string         `yaml:"reply_addr"`         // Reply listener address (default: :4002)
	DiscoveryInterval Duration       `yaml:"discovery_interval"` // Scan period, 0 = scan once at startup

	// Reply listener restart settings
	MinRetryBackoff Duration `yaml:"min_retry_backoff"` // Minimum backoff between restarts (default: 1s)
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"` // Maximum backoff between restarts (default: 1m)
	RetryMultiplier float64  `yaml:"retry_multiplier"`  // Backoff multiplier (default: 2.0)
	MaxRestarts     int      `yaml:"max_restarts"`      // Max restart attempts, 0 = infinite (default: 0)
}

// DeviceConfig is a device that does not need discovery
type DeviceConfig struct {
	IP  string `yaml:"ip"`
	ID  string `yaml:"id"`
	SKU string `yaml:"sku"`
}

// DeliveryConfig contains the command delivery policy
type DeliveryConfig struct {
	SendCount     int     `yaml:"send_count"`     // Copies of every unicast command (default: 2)
	CommandPort   int     `yaml:"command_port"`   // default: 4003
	DiscoveryPort int     `yaml:"discovery_port"` // default: 4001
	BroadcastAddr string  `yaml:"broadcast_addr"` // default: 239.255.255.250
	RateLimitRPS  float64 `yaml:"rate_limit_rps"` // Datagrams per second, 0 = unlimited
}

// Policy returns the transport delivery policy
func (c DeliveryConfig) Policy() transport.DeliveryPolicy {
	return transport.DeliveryPolicy{
		SendCount:     c.SendCount,
		CommandPort:   c.CommandPort,
		DiscoveryPort: c.DiscoveryPort,
		BroadcastAddr: c.BroadcastAddr,
	}
}

// FadeConfig contains fade loop timings
type FadeConfig struct {
	Tick             Duration `yaml:"tick"`              // default: 30ms
	SettleMargin     Duration `yaml:"settle_margin"`     // default: 100ms
	PrimeSettle      Duration `yaml:"prime_settle"`      // default: 100ms
	BrightnessSettle Duration `yaml:"brightness_settle"` // default: 100ms
	FinalSettle      Duration `yaml:"final_settle"`      // default: 50ms
}

// Timing returns the device timings
func (c FadeConfig) Timing() device.Timing {
	return device.Timing{
		Tick:             c.Tick.Duration(),
		SettleMargin:     c.SettleMargin.Duration(),
		PrimeSettle:      c.PrimeSettle.Duration(),
		BrightnessSettle: c.BrightnessSettle.Duration(),
		FinalSettle:      c.FinalSettle.Duration(),
	}
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// LedgerConfig contains fade ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the retention period
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the listen host with default
func (c *HealthcheckConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// GetPort returns the listen port with default
func (c *HealthcheckConfig) GetPort() int {
	if c.Port == 0 {
		return 9090
	}
	return c.Port
}

// APIConfig contains control API server settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains state forwarding settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      *bool  `yaml:"retain"` // default: true
}

// GetRetain returns the retain flag with default
func (c *MQTTConfig) GetRetain() bool {
	if c.Retain == nil {
		return true
	}
	return *c.Retain
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// GetShutdownTimeout returns the graceful stop timeout
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
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

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./goveed.sqlite"
	}

	// Govee defaults
	if cfg.Govee.BindAddr == "" {
		cfg.Govee.BindAddr = "0.0.0.0:0"
	}
	if cfg.Govee.ReplyAddr == "" {
		cfg.Govee.ReplyAddr = ":4002"
	}
	if cfg.Govee.MinRetryBackoff == 0 {
		cfg.Govee.MinRetryBackoff = Duration(1 * time.Second)
	}
	if cfg.Govee.MaxRetryBackoff == 0 {
		cfg.Govee.MaxRetryBackoff = Duration(1 * time.Minute)
	}
	if cfg.Govee.RetryMultiplier == 0 {
		cfg.Govee.RetryMultiplier = 2.0
	}

	// Delivery defaults
	policy := transport.DefaultDeliveryPolicy()
	if cfg.Delivery.SendCount == 0 {
		cfg.Delivery.SendCount = policy.SendCount
	}
	if cfg.Delivery.CommandPort == 0 {
		cfg.Delivery.CommandPort = policy.CommandPort
	}
	if cfg.Delivery.DiscoveryPort == 0 {
		cfg.Delivery.DiscoveryPort = policy.DiscoveryPort
	}
	if cfg.Delivery.BroadcastAddr == "" {
		cfg.Delivery.BroadcastAddr = policy.BroadcastAddr
	}

	// Fade defaults
	timing := device.DefaultTiming()
	if cfg.Fade.Tick == 0 {
		cfg.Fade.Tick = Duration(timing.Tick)
	}
	if cfg.Fade.SettleMargin == 0 {
		cfg.Fade.SettleMargin = Duration(timing.SettleMargin)
	}
	if cfg.Fade.PrimeSettle == 0 {
		cfg.Fade.PrimeSettle = Duration(timing.PrimeSettle)
	}
	if cfg.Fade.BrightnessSettle == 0 {
		cfg.Fade.BrightnessSettle = Duration(timing.BrightnessSettle)
	}
	if cfg.Fade.FinalSettle == 0 {
		cfg.Fade.FinalSettle = Duration(timing.FinalSettle)
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}

	// MQTT defaults
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "goveed"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
