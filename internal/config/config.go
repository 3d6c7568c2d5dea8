package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envPrefix = "solarmax"

	maxKeysPerQuery = 32

	minReconnectIntervalMillis = 1000
	maxMinQueryIntervalMillis  = 60000

	defaultQueryTimeout = 10 * time.Second
)

type Config struct {
	LogLevel      zapcore.Level
	Inverter      InverterConfig `mapstructure:"inverter"`
	MQTT          MQTTConfig     `mapstructure:"mqtt"`
	MonitorConfig MonitorConfig  `mapstructure:"monitor"`
	Port          uint           `mapstructure:"port"`
	HttpLog       bool           `mapstructure:"http_log"`
}

type InverterConfig struct {
	Host                    string
	Port                    uint
	Address                 uint
	ConnectTimeoutMillis    uint32 `mapstructure:"connect_timeout_millis"`
	ReadTimeoutMillis       uint32 `mapstructure:"read_timeout_millis"`
	WriteTimeoutMillis      uint32 `mapstructure:"write_timeout_millis"`
	ReconnectIntervalMillis uint32 `mapstructure:"reconnect_interval_millis"`
	MinQueryIntervalMillis  uint32 `mapstructure:"min_query_interval_millis"`
	SkipProbe               bool   `mapstructure:"skip_probe"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	Keys               string
	KeysPerQuery       uint `mapstructure:"keys_per_query"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// ClientConfig maps the inverter section to the protocol client configuration.
func (c InverterConfig) ClientConfig() solarmax.Config {
	return solarmax.Config{
		Host:           c.Host,
		Port:           int(c.Port),
		Address:        int(c.Address),
		ConnectTimeout: millis(c.ConnectTimeoutMillis),
		ReadTimeout:    millis(c.ReadTimeoutMillis),
		WriteTimeout:   millis(c.WriteTimeoutMillis),
	}
}

func (c InverterConfig) ReconnectInterval() time.Duration {
	return millis(c.ReconnectIntervalMillis)
}

func (c InverterConfig) MinQueryInterval() time.Duration {
	return millis(c.MinQueryIntervalMillis)
}

// QueryTimeout bounds one query, including the wait for the rate limiter.
func (c InverterConfig) QueryTimeout() time.Duration {
	timeout := millis(c.ReadTimeoutMillis) + millis(c.WriteTimeoutMillis)
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return timeout + c.MinQueryInterval()
}

func (c MonitorConfig) PollInterval() time.Duration {
	return millis(c.PollIntervalMillis)
}

// QueryKeys returns the configured telemetry keys, all known keys when unset.
func (c MonitorConfig) QueryKeys() []solarmax.QueryKey {
	keys, err := ParseQueryKeys(c.Keys)
	if err != nil || len(keys) == 0 {
		return solarmax.AllKeys
	}
	return keys
}

func millis(v uint32) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("inverter.host", "")
	v.SetDefault("inverter.port", solarmax.DefaultTCPPort)
	v.SetDefault("inverter.address", solarmax.MinDeviceAddress)
	v.SetDefault("inverter.connect_timeout_millis", 5000)
	v.SetDefault("inverter.read_timeout_millis", 5000)
	v.SetDefault("inverter.write_timeout_millis", 5000)
	v.SetDefault("inverter.reconnect_interval_millis", solarmax.DefaultReconnectInterval.Milliseconds())
	v.SetDefault("inverter.min_query_interval_millis", 0)
	v.SetDefault("inverter.skip_probe", false)
	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.base_topic", "solarmax")
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("monitor.poll_interval_millis", 10000)
	v.SetDefault("monitor.keys", "")
	v.SetDefault("monitor.keys_per_query", 8)
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
}

// Load reads the configuration from the environment (SOLARMAX_ prefix) and
// from the YAML file named by CONFIG_FILE, if any.
func Load(v *viper.Viper) (*Config, error) {

	// alias PORT => SOLARMAX_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SOLARMAX_PORT", port)
	}

	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			if err := v.ReadInConfig(); err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

// Validate checks bounds and normalizes the MQTT topics in place.
func (cfg *Config) Validate() error {
	if cfg.Inverter.Host == "" {
		return errors.New("config param inverter.host is required")
	}
	if err := solarmax.ValidateAddress(int(cfg.Inverter.Address)); err != nil {
		return fmt.Errorf("config param inverter.address: %w", err)
	}

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Inverter.ReconnectIntervalMillis < minReconnectIntervalMillis {
		return fmt.Errorf("config param inverter.reconnect_interval_millis should be >= %d", minReconnectIntervalMillis)
	}
	if cfg.Inverter.MinQueryIntervalMillis > maxMinQueryIntervalMillis {
		return fmt.Errorf("config param inverter.min_query_interval_millis should be <= %d", maxMinQueryIntervalMillis)
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.MonitorConfig.KeysPerQuery < 1 || cfg.MonitorConfig.KeysPerQuery > maxKeysPerQuery {
		return fmt.Errorf("config param monitor.keys_per_query should be between 1 and %d", maxKeysPerQuery)
	}
	if _, err := ParseQueryKeys(cfg.MonitorConfig.Keys); err != nil {
		return fmt.Errorf("config param monitor.keys: %w", err)
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ParseQueryKeys parses a comma separated key list such as "PAC,KDY,SYS".
// Duplicates are dropped. An empty list is valid.
func ParseQueryKeys(list string) ([]solarmax.QueryKey, error) {
	var keys []solarmax.QueryKey
	seen := make(map[solarmax.QueryKey]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		key := solarmax.QueryKey(part)
		if !key.Known() {
			return nil, fmt.Errorf("unknown key %q", part)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}
