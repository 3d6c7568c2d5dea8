package util

import (
	"github.com/berfenger/solarmax2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Host:                    "127.0.0.1",
			Port:                    12345,
			Address:                 1,
			ReadTimeoutMillis:       2000,
			WriteTimeoutMillis:      2000,
			ReconnectIntervalMillis: 50,
			SkipProbe:               true,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "solarmax",
			HADiscoveryTopic: "homeassistant",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 1000,
			Keys:               "PAC,KDY,KT0,SYS,SAL,UDC,IDC,UL1,IL1,TKK",
			KeysPerQuery:       4,
		},
		Port: 8080,
	}
}
