package actorutil

import (
	"testing"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	assert := assert.New(t)

	req, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.BUTTON_ID_REFRESH, Command: mqtt.COMMAND_BUTTON, Payload: "PRESS"})
	assert.NoError(err)
	assert.IsType(domain.PollNowRequest{}, req)

	req, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.BUTTON_ID_RECONNECT, Command: mqtt.COMMAND_BUTTON, Payload: "PRESS"})
	assert.NoError(err)
	assert.IsType(domain.ReconnectRequest{}, req)

	req, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_POLL_INTERVAL, Command: mqtt.COMMAND_NUMBER, Payload: "30"})
	assert.NoError(err)
	assert.Equal(domain.SetPollIntervalRequest{Interval: 30 * time.Second}, req)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_POLL_INTERVAL, Command: mqtt.COMMAND_NUMBER, Payload: "0.5"})
	assert.Error(err)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_POLL_INTERVAL, Command: mqtt.COMMAND_NUMBER, Payload: "abc"})
	assert.Error(err)

	req, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "unknown", Command: mqtt.COMMAND_BUTTON})
	assert.NoError(err)
	assert.Nil(req)
}
