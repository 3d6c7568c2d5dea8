package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_INVERTER_CONNECTED  = "inverter_connected"
	BUTTON_ID_REFRESH             = "refresh"
	BUTTON_ID_RECONNECT           = "reconnect"
	INPUT_NUMBER_ID_POLL_INTERVAL = "poll_interval"
	STATE_CLASS_MEASUREMENT       = "measurement"
	STATE_CLASS_TOTAL_INCREASING  = "total_increasing"
	DEVICE_CLASS_CURRENT          = "current"
	DEVICE_CLASS_DURATION         = "duration"
	DEVICE_CLASS_ENERGY           = "energy"
	DEVICE_CLASS_POWER            = "power"
	DEVICE_CLASS_TEMPERATURE      = "temperature"
	DEVICE_CLASS_VOLTAGE          = "voltage"
	DEVICE_CLASS_CONNECTIVITY     = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC       = "diagnostic"
	ENTITY_CLASS_CONFIG           = "config"
	SENSOR_TYPE_SENSOR            = "sensor"
	SENSOR_TYPE_BINARY            = "binary_sensor"
	INPUT_NUMBER_MODE_BOX         = "box"
	INPUT_NUMBER_MODE_SLIDER      = "slider"

	MANUFACTURER_SOLARMAX = "SolarMax"
)

type sensorMeta struct {
	stateClass     string
	deviceClass    string
	entityCategory string
	icon           string
	disabled       bool
}

var sensorCatalog = map[solarmax.QueryKey]sensorMeta{
	solarmax.KeyStatus:                  {icon: "mdi:solar-power"},
	solarmax.KeyAlarmCode:               {icon: "mdi:alert-circle-outline"},
	solarmax.KeyType:                    {entityCategory: ENTITY_CLASS_DIAGNOSTIC, icon: "mdi:information-outline"},
	solarmax.KeyACOutput:                {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_POWER},
	solarmax.KeyOperatingHours:          {stateClass: STATE_CLASS_TOTAL_INCREASING, deviceClass: DEVICE_CLASS_DURATION, entityCategory: ENTITY_CLASS_DIAGNOSTIC},
	solarmax.KeyDateYear:                {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyDateMonth:               {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyDateDay:                 {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyEnergyYear:              {stateClass: STATE_CLASS_TOTAL_INCREASING, deviceClass: DEVICE_CLASS_ENERGY},
	solarmax.KeyEnergyMonth:             {stateClass: STATE_CLASS_TOTAL_INCREASING, deviceClass: DEVICE_CLASS_ENERGY},
	solarmax.KeyEnergyDay:               {stateClass: STATE_CLASS_TOTAL_INCREASING, deviceClass: DEVICE_CLASS_ENERGY},
	solarmax.KeyEnergyTotal:             {stateClass: STATE_CLASS_TOTAL_INCREASING, deviceClass: DEVICE_CLASS_ENERGY},
	solarmax.KeyInstalledCapacity:       {deviceClass: DEVICE_CLASS_POWER, entityCategory: ENTITY_CLASS_DIAGNOSTIC},
	solarmax.KeyMainsCycleDuration:      {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyNetworkAddress:          {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyRelativeOutput:          {stateClass: STATE_CLASS_MEASUREMENT, icon: "mdi:gauge"},
	solarmax.KeySoftwareVersion:         {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyVoltageDC:               {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_VOLTAGE},
	solarmax.KeyVoltagePhaseOne:         {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_VOLTAGE},
	solarmax.KeyCurrentDC:               {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_CURRENT},
	solarmax.KeyCurrentPhaseOne:         {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_CURRENT},
	solarmax.KeyTemperaturePowerUnitOne: {stateClass: STATE_CLASS_MEASUREMENT, deviceClass: DEVICE_CLASS_TEMPERATURE},
	solarmax.KeyTimeHours:               {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyTimeMinutes:             {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
	solarmax.KeyMainsFrequency:          {entityCategory: ENTITY_CLASS_DIAGNOSTIC, disabled: true},
}

// SensorId maps a protocol key to its MQTT sensor id, e.g. PAC => ac_output.
func SensorId(key solarmax.QueryKey) string {
	return strings.ReplaceAll(strings.ToLower(key.Name()), " ", "_")
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solarmax_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "SolarMax2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SolarMax2MQTT %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(baseTopic string, info *DeviceInfo) Device {
	serial := baseTopic + "/" + strconv.Itoa(info.Address)
	return Device{
		Id:           fmt.Sprintf("smx_inverter_%s", md5HashShort(serial)),
		Version:      info.SoftwareVersion,
		Manufacturer: MANUFACTURER_SOLARMAX,
		Model:        info.Model,
		Name:         fmt.Sprintf("%s #%d", info.Model, info.Address),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// InverterSensors builds one sensor per key. Only the first sensor carries
// the full device description.
func InverterSensors(inverterDevice Device, keys []solarmax.QueryKey) []GenericSensor {

	var sensors []GenericSensor

	for i, key := range keys {
		meta := sensorCatalog[key]
		device := inverterDevice
		if i > 0 {
			device = IdDevice(inverterDevice)
		}
		id := SensorId(key)
		sensor := GenericSensor{
			Device:            device,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              key.Name(),
			UnitOfMeasurement: key.Unit(),
			StateClass:        meta.stateClass,
			DeviceClass:       meta.deviceClass,
			EntityCategory:    meta.entityCategory,
			Icon:              meta.icon,
			UniqueId:          uniqueId(inverterDevice.Id, id),
		}
		if meta.disabled {
			sensor.EnabledByDefault = optionalBool(false)
		}
		sensors = append(sensors, sensor)
	}

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Inverter TCP link
	sensors = append(sensors, GenericSensor{
		Device:         IdDevice(bridgeDevice),
		Id:             SENSOR_ID_INVERTER_CONNECTED,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Inverter connection",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_INVERTER_CONNECTED),
	})

	return sensors
}

func BridgeButtons(bridgeDevice Device) []GenericButton {

	var buttons []GenericButton

	buttons = append(buttons, GenericButton{
		Device:   IdDevice(bridgeDevice),
		Id:       BUTTON_ID_REFRESH,
		Name:     "Refresh values",
		UniqueId: uniqueId(bridgeDevice.Id, BUTTON_ID_REFRESH),
		Icon:     "mdi:refresh",
	})
	buttons = append(buttons, GenericButton{
		Device:         IdDevice(bridgeDevice),
		Id:             BUTTON_ID_RECONNECT,
		Name:           "Reconnect inverter",
		UniqueId:       uniqueId(bridgeDevice.Id, BUTTON_ID_RECONNECT),
		Icon:           "mdi:lan-connect",
		EntityCategory: ENTITY_CLASS_CONFIG,
	})

	return buttons
}

func BridgeInputNumbers(bridgeDevice Device, pollIntervalSeconds float64) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:         IdDevice(bridgeDevice),
		Id:             INPUT_NUMBER_ID_POLL_INTERVAL,
		Name:           "Poll interval",
		UniqueId:       uniqueId(bridgeDevice.Id, INPUT_NUMBER_ID_POLL_INTERVAL),
		Icon:           "mdi:timer-cog-outline",
		Max:            3600,
		Min:            1,
		Step:           1,
		Mode:           INPUT_NUMBER_MODE_BOX,
		Unit:           "s",
		EntityCategory: ENTITY_CLASS_CONFIG,
		InitialValue:   pollIntervalSeconds,
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
