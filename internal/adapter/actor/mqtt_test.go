package actor

import (
	"testing"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/util"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func receivePublished(t *testing.T, ch <-chan PublishedMessage) PublishedMessage {
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
		return PublishedMessage{}
	}
}

func TestMQTTActor(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}
	published := make(chan PublishedMessage, 16)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTestMQTTActor(&cfg, &es, logger, func(m PublishedMessage) { published <- m })
	})
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(resp.Healthy)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "ac_output",
		},
		Value:    245.5,
		Decimals: 1,
	})
	m := receivePublished(t, published)
	assert.Equal("solarmax/sensor/ac_output/state", m.Topic)
	assert.Equal("245.5", m.Payload)
	assert.False(m.Retain)

	es.Publish(domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "status",
		},
		Value: "Netzbetrieb",
	})
	m = receivePublished(t, published)
	assert.Equal("solarmax/sensor/status/state", m.Topic)
	assert.Equal("Netzbetrieb", m.Payload)

	es.Publish(domain.InverterConnectionEvent{Connected: false})
	m = receivePublished(t, published)
	assert.Equal("solarmax/binary_sensor/inverter_connected/state", m.Topic)
	assert.Equal("off", m.Payload)
	assert.True(m.Retain)

	// unrelated events are not published
	es.Publish("noise")

	context.Stop(pid)

	select {
	case m := <-published:
		t.Errorf("unexpected message %+v", m)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMQTTActorDiscovery(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	published := make(chan PublishedMessage, 16)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTestMQTTActor(&cfg, nil, logger, func(m PublishedMessage) { published <- m })
	})
	pid := context.Spawn(props)

	bridge := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	req := domain.PublishDiscoveryRequest{
		Sensors: domain.BridgeSensors(bridge),
		Buttons: domain.BridgeButtons(bridge),
	}
	result, err := context.RequestFuture(pid, req, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	assert.False(result.(domain.PublishDiscoveryResponse).HasResponseError())

	var topics []string
	for i := 0; i < 4; i++ {
		m := receivePublished(t, published)
		assert.True(m.Retain)
		topics = append(topics, m.Topic)
	}
	assert.Equal([]string{
		"homeassistant/binary_sensor/" + bridge.Id + "/bridge/config",
		"homeassistant/binary_sensor/" + bridge.Id + "/inverter_connected/config",
		"homeassistant/button/" + bridge.Id + "/refresh/config",
		"homeassistant/button/" + bridge.Id + "/reconnect/config",
	}, topics)

	context.Stop(pid)
}
