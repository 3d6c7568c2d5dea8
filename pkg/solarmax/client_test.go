package solarmax

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testInverterValues = map[QueryKey]string{
	KeyStatus:                  "4E28,0",
	KeyAlarmCode:               "0",
	KeyType:                    "4E34",
	KeyACOutput:                "0A",
	KeyOperatingHours:          "1F40",
	KeyDateYear:                "7E8",
	KeyDateMonth:               "6",
	KeyDateDay:                 "F",
	KeyEnergyYear:              "5DC",
	KeyEnergyMonth:             "C8",
	KeyEnergyDay:               "2D",
	KeyEnergyTotal:             "BC55",
	KeyInstalledCapacity:       "1770",
	KeyMainsCycleDuration:      "4E20",
	KeyNetworkAddress:          "1",
	KeyRelativeOutput:          "2A",
	KeySoftwareVersion:         "3F2",
	KeyVoltageDC:               "D2C",
	KeyVoltagePhaseOne:         "8FD",
	KeyCurrentDC:               "64",
	KeyCurrentPhaseOne:         "14D",
	KeyTemperaturePowerUnitOne: "2A",
	KeyTimeHours:               "C",
	KeyTimeMinutes:             "1E",
	KeyMainsFrequency:          "1388",
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *Simulator) {
	sim := newTestSimulator(t)
	sim.SetValues(testInverterValues)

	opts = append([]Option{
		WithProber(AlwaysReachable),
		WithLogger(zap.Must(zap.NewDevelopment())),
		WithReconnectInterval(10 * time.Millisecond),
	}, opts...)
	client, err := NewClient(context.Background(), sim.Config(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, sim
}

func TestNewClientInvalidAddress(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Host: "127.0.0.1", Address: 251}, WithProber(AlwaysReachable))
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Host: "192.0.2.1"}, WithProber(unreachable()))
	assert.ErrorIs(t, err, ErrHostUnreachable)
}

func TestClientQuery(t *testing.T) {
	assert := assert.New(t)
	client, sim := newTestClient(t)

	values, err := client.Query(context.Background(), KeyACOutput, KeyStatus)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Len(values, 2)
	assert.Equal(5.0, values[KeyACOutput].Float())
	assert.Equal("Netzbetrieb", values[KeyStatus].Label)
	assert.Equal([]string{"{FB;01;1A|64:PAC;SYS|057B}"}, sim.Requests())
}

func TestClientAccessors(t *testing.T) {
	assert := assert.New(t)
	client, _ := newTestClient(t)
	ctx := context.Background()

	model, err := client.Model(ctx)
	require.NoError(t, err)
	assert.Equal("SolarMax 3000S", model)

	typ, err := client.Type(ctx)
	require.NoError(t, err)
	assert.Equal(int64(20020), typ)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal("Netzbetrieb", status)

	alarm, err := client.AlarmCode(ctx)
	require.NoError(t, err)
	assert.Equal("kein Fehler", alarm)

	floats := []struct {
		get  func(context.Context) (float64, error)
		want float64
	}{
		{client.ACOutput, 5.0},
		{client.EnergyDay, 4.5},
		{client.InstalledCapacity, 3000.0},
		{client.VoltageDC, 337.2},
		{client.VoltagePhaseOne, 230.1},
		{client.CurrentDC, 1.0},
		{client.CurrentPhaseOne, 3.33},
	}
	for _, f := range floats {
		v, err := f.get(ctx)
		require.NoError(t, err)
		assert.Equal(f.want, v)
	}

	ints := []struct {
		get  func(context.Context) (int64, error)
		want int64
	}{
		{client.OperatingHours, 8000},
		{client.DateYear, 2024},
		{client.DateMonth, 6},
		{client.DateDay, 15},
		{client.EnergyYear, 1500},
		{client.EnergyMonth, 200},
		{client.EnergyTotal, 48213},
		{client.MainsCycleDuration, 20000},
		{client.MainsFrequency, 5000},
		{client.NetworkAddress, 1},
		{client.RelativeOutput, 42},
		{client.SoftwareVersion, 1010},
		{client.TemperaturePowerUnitOne, 42},
		{client.TimeHours, 12},
		{client.TimeMinutes, 30},
	}
	for _, i := range ints {
		v, err := i.get(ctx)
		require.NoError(t, err)
		assert.Equal(i.want, v)
	}

	assert.Equal(UnitKiloWattH, client.Unit(KeyEnergyDay))
}

func TestClientKeyNotFound(t *testing.T) {
	client, sim := newTestClient(t)
	sim.Unset(KeyRelativeOutput)

	_, err := client.RelativeOutput(context.Background())
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.True(t, client.Connected())
}

func TestClientChecksumMismatch(t *testing.T) {
	client, sim := newTestClient(t)
	sim.CorruptChecksum(true)

	values, err := client.Query(context.Background(), KeyACOutput)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Nil(t, values)

	sim.CorruptChecksum(false)
	v, err := client.ACOutput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestClientConcurrentQueries(t *testing.T) {
	client, _ := newTestClient(t)

	keys := []QueryKey{KeyACOutput, KeyEnergyDay, KeyVoltageDC, KeyStatus, KeyTimeHours}
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(key QueryKey) {
			defer wg.Done()
			v, err := client.QuerySingle(context.Background(), key)
			if err != nil {
				errs <- err
				return
			}
			assert.Equal(t, key, v.Key)
		}(keys[i%len(keys)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestClientReconnectAfterDrop(t *testing.T) {
	client, sim := newTestClient(t)
	ctx := context.Background()

	_, err := client.ACOutput(ctx)
	require.NoError(t, err)

	sim.DropConnections()
	_, err = client.ACOutput(ctx)
	assert.Error(t, err)
	assert.False(t, client.Connected())

	_, err = client.ACOutput(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, client.Reconnect(ctx))
	v, err := client.ACOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestClientClose(t *testing.T) {
	client, _ := newTestClient(t)

	require.NoError(t, client.Close())
	assert.Equal(t, StateDisconnected, client.State())

	_, err := client.Query(context.Background(), KeyACOutput)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientRateLimit(t *testing.T) {
	client, _ := newTestClient(t, WithRateLimit(50*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.ACOutput(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClientInstrument(t *testing.T) {
	var mu sync.Mutex
	timings := map[string]int{}
	failures := map[string]int{}
	client, sim := newTestClient(t, WithInstrument(Instrument{
		RecordTime: func(op string, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			timings[op]++
		},
		RecordError: func(op string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failures[op]++
		},
	}))

	_, err := client.ACOutput(context.Background())
	require.NoError(t, err)
	sim.CorruptChecksum(true)
	_, err = client.ACOutput(context.Background())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, timings["query"])
	assert.Equal(t, 1, failures["query"])
}
