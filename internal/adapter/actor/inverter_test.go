package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestInverter(t *testing.T) (*solarmax.Simulator, *solarmax.Client) {
	logger := zap.Must(zap.NewDevelopment())
	sim, err := solarmax.NewSimulator(1, logger)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	sim.SetValues(map[solarmax.QueryKey]string{
		solarmax.KeyStatus:            "4E28,0",
		solarmax.KeyType:              "4E34",
		solarmax.KeyACOutput:          "0A",
		solarmax.KeyEnergyDay:         "2D",
		solarmax.KeyNetworkAddress:    "1",
		solarmax.KeySoftwareVersion:   "3F2",
		solarmax.KeyInstalledCapacity: "1770",
	})

	client, err := solarmax.NewClient(context.Background(), sim.Config(),
		solarmax.WithProber(solarmax.AlwaysReachable),
		solarmax.WithReconnectInterval(10*time.Millisecond),
		solarmax.WithLogger(logger),
	)
	require.NoError(t, err)
	return sim, client
}

type connectionEvents struct {
	mu     sync.Mutex
	states []bool
}

func (c *connectionEvents) add(v any) {
	if ev, ok := v.(domain.InverterConnectionEvent); ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.states = append(c.states, ev.Connected)
	}
}

func (c *connectionEvents) get() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.states...)
}

func TestInverterActorQuery(t *testing.T) {

	assert := assert.New(t)

	_, client := newTestInverter(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(client, nil, InverterActorOpts{QueryTimeout: 2 * time.Second}, logger)
	})
	pid := context.Spawn(props)

	msg := domain.QueryRequest{Keys: []solarmax.QueryKey{solarmax.KeyACOutput, solarmax.KeyStatus}}
	result, err := context.RequestFuture(pid, msg, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.QueryResponse)
	assert.True(ok)
	assert.False(resp.HasResponseError())
	assert.Equal(5.0, resp.Values[solarmax.KeyACOutput].Float())
	assert.Equal("Netzbetrieb", resp.Values[solarmax.KeyStatus].Label)

	context.Stop(pid)
}

func TestInverterActorDeviceInfo(t *testing.T) {

	assert := assert.New(t)

	_, client := newTestInverter(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(client, nil, InverterActorOpts{}, logger)
	})
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetDeviceInfoRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDeviceInfoResponse)
	if resp.HasResponseError() {
		t.Error(resp.GetResponseError())
		return
	}

	assert.Equal("SolarMax 3000S", resp.Info.Model)
	assert.Equal(uint32(3000), resp.Info.MaxPowerWatt)
	assert.Equal(1, resp.Info.Address)
	assert.Equal("1010", resp.Info.SoftwareVersion)
	assert.Equal(3000.0, resp.Info.InstalledCapacity)

	health, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	assert.True(health.(domain.ActorHealthResponse).Healthy)

	context.Stop(pid)
}

func TestInverterActorReconnects(t *testing.T) {

	assert := assert.New(t)

	sim, client := newTestInverter(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	es := &eventstream.EventStream{}
	conn := &connectionEvents{}
	es.Subscribe(conn.add)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(client, es, InverterActorOpts{QueryTimeout: 2 * time.Second, RetryDelay: 50 * time.Millisecond}, logger)
	})
	pid := context.Spawn(props)

	msg := domain.QueryRequest{Keys: []solarmax.QueryKey{solarmax.KeyACOutput}}
	result, err := context.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	assert.False(result.(domain.QueryResponse).HasResponseError())

	sim.DropConnections()

	result, err = context.RequestFuture(pid, msg, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(result.(domain.QueryResponse).HasResponseError())

	assert.Eventually(func() bool {
		result, err := context.RequestFuture(pid, msg, 5*time.Second).Result()
		return err == nil && !result.(domain.QueryResponse).HasResponseError()
	}, 5*time.Second, 50*time.Millisecond)

	assert.Eventually(func() bool {
		states := conn.get()
		return len(states) >= 3 && states[len(states)-1]
	}, 2*time.Second, 20*time.Millisecond)
	states := conn.get()
	assert.Equal([]bool{true, false, true}, states[:3])

	context.Stop(pid)
}

func TestInverterActorReconnectRequest(t *testing.T) {

	assert := assert.New(t)

	sim, client := newTestInverter(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(client, nil, InverterActorOpts{}, logger)
	})
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.ReconnectRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.False(result.(domain.ReconnectResponse).HasResponseError())

	assert.Eventually(func() bool {
		result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, time.Second).Result()
		return err == nil && result.(domain.ActorHealthResponse).Healthy
	}, 5*time.Second, 20*time.Millisecond)

	// old connection was replaced, queries keep working
	result, err = context.RequestFuture(pid, domain.QueryRequest{Keys: []solarmax.QueryKey{solarmax.KeyEnergyDay}}, 2*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.QueryResponse)
	assert.False(resp.HasResponseError())
	assert.Equal(4.5, resp.Values[solarmax.KeyEnergyDay].Float())
	assert.NotEmpty(sim.Requests())

	context.Stop(pid)
}
