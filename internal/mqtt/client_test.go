package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/solarmax2mqtt/internal/config"
	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
	"github.com/stretchr/testify/assert"
)

func testClient() *MQTTClient {
	return newMQTTClient(nil, config.MQTTConfig{
		BaseTopic:        "solarmax",
		HADiscoveryTopic: "homeassistant",
	})
}

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/my_device/command"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("my_device", matches[0][1], "device extract")
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/my_device/state"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(0, len(matches), "no matches")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/number/number_name/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("number_name", matches[0][1], "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/number_name/command"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(0, len(matches), "no matches")
}

func TestParseCommand(t *testing.T) {

	assert := assert.New(t)
	client := testClient()

	cmd, err := client.parseCommand("solarmax/button/refresh/command", MQTT_PAYLOAD_PRESS)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(ParsedMQTTCommand{DeviceId: "refresh", Command: COMMAND_BUTTON, Payload: "PRESS"}, *cmd)

	cmd, err = client.parseCommand("solarmax/number/poll_interval/set", "15")
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(ParsedMQTTCommand{DeviceId: "poll_interval", Command: COMMAND_NUMBER, Payload: "15"}, *cmd)

	_, err = client.parseCommand("solarmax/number/poll_interval/set", "fast")
	assert.Error(err)

	_, err = client.parseCommand("solarmax/sensor/ac_output/state", "12.5")
	assert.Error(err)

	_, err = client.parseCommand("other/button/refresh/command", MQTT_PAYLOAD_PRESS)
	assert.Error(err)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)
	client := testClient()

	assert.Equal("solarmax/bridge/state", client.BridgeStateTopic())
	assert.Equal("solarmax/sensor/ac_output/state", client.SensorStateTopic("ac_output"))
	assert.Equal("solarmax/binary_sensor/inverter_connected/state", client.BinarySensorStateTopic("inverter_connected"))
	assert.Equal("solarmax/button/refresh/command", client.ButtonCommandTopic("refresh"))
	assert.Equal("solarmax/number/poll_interval/set", client.InputNumberCommandTopic("poll_interval"))
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)
	client := testClient()

	info := &domain.DeviceInfo{Address: 1, Model: "SolarMax 3000S", SoftwareVersion: "1010"}
	dev := domain.InverterDevice("solarmax", info)
	sensors := domain.InverterSensors(dev, []solarmax.QueryKey{solarmax.KeyACOutput, solarmax.KeyEnergyTotal})

	msg := GenericSensorToHADiscoveryMessage(client, sensors[0])
	assert.Equal("solarmax/sensor/ac_output/state", msg.StateTopic)
	assert.Equal("W", msg.UnitOfMeasurement)
	assert.Equal(domain.DEVICE_CLASS_POWER, msg.DeviceClass)
	assert.Equal(domain.STATE_CLASS_MEASUREMENT, msg.StateClass)
	assert.Equal("solarmax/bridge/state", msg.AvTopic)
	assert.Equal("SolarMax", msg.Device.Manufacturer)
	assert.Equal(
		"homeassistant/sensor/"+dev.Id+"/ac_output/config",
		client.HADiscoverySensorTopic(sensors[0]),
	)

	msg = GenericSensorToHADiscoveryMessage(client, sensors[1])
	assert.Equal(domain.STATE_CLASS_TOTAL_INCREASING, msg.StateClass)
	assert.Equal("kWh", msg.UnitOfMeasurement)
	// only the first sensor carries the full device
	assert.Empty(msg.Device.Manufacturer)
}

func TestBridgeDiscoveryMessages(t *testing.T) {

	assert := assert.New(t)
	client := testClient()
	bridge := domain.BridgeDevice("solarmax")

	sensors := domain.BridgeSensors(bridge)
	state := GenericSensorToHADiscoveryMessage(client, sensors[0])
	assert.Equal(client.BridgeStateTopic(), state.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, state.PayloadOn)
	conn := GenericSensorToHADiscoveryMessage(client, sensors[1])
	assert.Equal("solarmax/binary_sensor/inverter_connected/state", conn.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, conn.PayloadOn)

	buttons := domain.BridgeButtons(bridge)
	msg := GenericButtonToHADiscoveryMessage(client, buttons[0])
	assert.Equal("solarmax/button/refresh/command", msg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, msg.PayloadPress)
	assert.Empty(msg.StateTopic)

	numbers := domain.BridgeInputNumbers(bridge, 10)
	number := GenericInputNumberToHADiscoveryMessage(client, numbers[0])
	assert.Equal("solarmax/number/poll_interval/set", number.CommandTopic)
	assert.Equal(10.0, number.InitialValue)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Contains(string(data), `"payload_press":"PRESS"`)
	assert.NotContains(string(data), "state_topic")
}

func TestCommandTopics(t *testing.T) {
	assert.Equal(t, []string{"solarmax/button/+/command", "solarmax/number/+/set"}, testClient().commandTopics())
}
