package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validConfig() Config {
	return Config{
		Inverter: InverterConfig{
			Host:                    "192.168.1.20",
			Port:                    12345,
			Address:                 1,
			ReconnectIntervalMillis: 60000,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "SolarMax",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: MonitorConfig{
			PollIntervalMillis: 10000,
			KeysPerQuery:       8,
		},
	}
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Error(err)
		return
	}
	assert.Equal("solarmax", cfg.MQTT.BaseTopic, "base topic is lower cased")

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Inverter.Host = "" }},
		{"address zero", func(c *Config) { c.Inverter.Address = 0 }},
		{"address host", func(c *Config) { c.Inverter.Address = 251 }},
		{"invalid topic", func(c *Config) { c.MQTT.BaseTopic = "solar/max" }},
		{"invalid discovery topic", func(c *Config) { c.MQTT.HADiscoveryTopic = "" }},
		{"no reconnect interval", func(c *Config) { c.Inverter.ReconnectIntervalMillis = 0 }},
		{"reconnect too fast", func(c *Config) { c.Inverter.ReconnectIntervalMillis = 999 }},
		{"query interval too long", func(c *Config) { c.Inverter.MinQueryIntervalMillis = 60001 }},
		{"poll too fast", func(c *Config) { c.MonitorConfig.PollIntervalMillis = 999 }},
		{"no keys per query", func(c *Config) { c.MonitorConfig.KeysPerQuery = 0 }},
		{"too many keys per query", func(c *Config) { c.MonitorConfig.KeysPerQuery = 33 }},
		{"unknown key", func(c *Config) { c.MonitorConfig.Keys = "PAC,FOO" }},
	}
	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		assert.Error(cfg.Validate(), tt.name)
	}
}

func TestInvalidAddressWrapsSentinel(t *testing.T) {
	cfg := validConfig()
	cfg.Inverter.Address = 300
	assert.ErrorIs(t, cfg.Validate(), solarmax.ErrInvalidAddress)
}

func TestParseQueryKeys(t *testing.T) {
	keys, err := ParseQueryKeys(" pac, KDY,,SYS,PAC ")
	require.NoError(t, err)
	assert.Equal(t, []solarmax.QueryKey{solarmax.KeyACOutput, solarmax.KeyEnergyDay, solarmax.KeyStatus}, keys)

	keys, err = ParseQueryKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = ParseQueryKeys("PAC,XYZ")
	assert.Error(t, err)
}

func TestMonitorQueryKeysDefault(t *testing.T) {
	assert.Equal(t, solarmax.AllKeys, MonitorConfig{}.QueryKeys())
	assert.Equal(t, []solarmax.QueryKey{solarmax.KeyTimeHours}, MonitorConfig{Keys: "THR"}.QueryKeys())
}

func TestClientConfig(t *testing.T) {
	c := InverterConfig{
		Host:              "10.0.0.2",
		Port:              12345,
		Address:           7,
		ReadTimeoutMillis: 1500,
	}.ClientConfig()

	assert.Equal(t, "10.0.0.2", c.Host)
	assert.Equal(t, 12345, c.Port)
	assert.Equal(t, 7, c.Address)
	assert.Equal(t, int64(1500), c.ReadTimeout.Milliseconds())
	assert.Zero(t, c.WriteTimeout)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLogLevel("trace"))
	assert.Equal(t, zap.WarnLevel, ParseLogLevel("warn"))
	assert.Equal(t, zap.InfoLevel, ParseLogLevel("bogus"))
}

func TestLoadFromEnvAndFile(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(cfgFile, []byte(`
inverter:
  host: 192.168.1.50
  address: 3
monitor:
  keys: PAC,KDY
mqtt:
  host: broker
`), 0o600)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", cfgFile)
	t.Setenv("SOLARMAX_MONITOR_POLL_INTERVAL_MILLIS", "2000")
	t.Setenv("SOLARMAX_LOG_LEVEL", "debug")
	t.Setenv("SOLARMAX_PORT", "")
	t.Setenv("PORT", "9090")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal("192.168.1.50", cfg.Inverter.Host)
	assert.Equal(uint(3), cfg.Inverter.Address)
	assert.Equal(uint(12345), cfg.Inverter.Port)
	assert.Equal(uint32(60000), cfg.Inverter.ReconnectIntervalMillis)
	assert.Equal(uint32(2000), cfg.MonitorConfig.PollIntervalMillis)
	assert.Equal(uint(8), cfg.MonitorConfig.KeysPerQuery)
	assert.Equal("solarmax", cfg.MQTT.BaseTopic)
	assert.Equal("broker", cfg.MQTT.Host)
	assert.Equal(uint(9090), cfg.Port)
	assert.Equal(zap.DebugLevel, cfg.LogLevel)
}

func TestLoadRejectsZeroReconnectInterval(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SOLARMAX_INVERTER_HOST", "192.168.1.50")
	t.Setenv("SOLARMAX_INVERTER_RECONNECT_INTERVAL_MILLIS", "0")

	cfg, err := Load(viper.New())
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "reconnect_interval_millis")
}

func TestQueryTimeout(t *testing.T) {
	assert := assert.New(t)

	cfg := validConfig()
	assert.Equal(10*time.Second, cfg.Inverter.QueryTimeout())

	cfg.Inverter.ReadTimeoutMillis = 5000
	cfg.Inverter.WriteTimeoutMillis = 2000
	assert.Equal(7*time.Second, cfg.Inverter.QueryTimeout())

	// limiter wait is part of the query
	cfg.Inverter.MinQueryIntervalMillis = 30000
	assert.Equal(37*time.Second, cfg.Inverter.QueryTimeout())
}
