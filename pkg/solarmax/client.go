package solarmax

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client queries one inverter over a single TCP connection.
//
// The protocol has no request identifiers, so Query holds a lock over the
// whole send/receive exchange. A Client is safe for concurrent use.
type Client struct {
	cfg        Config
	conn       *ConnectionManager
	limiter    *rate.Limiter
	logger     *zap.Logger
	instrument instruments

	mu sync.Mutex
}

// NewClient validates the configuration and connects to the inverter.
// The returned error is ErrInvalidAddress, ErrHostUnreachable or
// ErrConnectFailed.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := ValidateAddress(cfg.Address); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	client := &Client{
		cfg:        cfg,
		conn:       newConnectionManager(cfg, o),
		limiter:    o.limiter,
		logger:     o.logger.With(zap.String("host", cfg.Host), zap.Int("address", cfg.Address)),
		instrument: o.instrument,
	}
	if err := client.conn.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) Address() int {
	return c.cfg.Address
}

func (c *Client) Connected() bool {
	return c.conn.Connected()
}

func (c *Client) State() State {
	return c.conn.State()
}

// Query asks for all keys in one frame. Any transport, checksum or frame
// error fails the whole call; no partial result is returned.
func (c *Client) Query(ctx context.Context, keys ...QueryKey) (map[QueryKey]Value, error) {
	frame, err := EncodeQuery(keys, c.cfg.Address)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer c.instrument.recordTimer("query")()

	if err := c.conn.Send(frame); err != nil {
		c.instrument.recordError("query", err)
		return nil, err
	}
	data, err := c.conn.Receive()
	if err != nil {
		c.instrument.recordError("query", err)
		return nil, err
	}

	values, err := DecodeResponse(data)
	if err != nil {
		c.logger.Warn("solarmax: discarding response", zap.String("frame", data), zap.Error(err))
		c.instrument.recordError("query", err)
		return nil, err
	}
	return values, nil
}

func (c *Client) QuerySingle(ctx context.Context, key QueryKey) (Value, error) {
	values, err := c.Query(ctx, key)
	if err != nil {
		return Value{}, err
	}
	v, ok := values[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return v, nil
}

// Unit returns the presentation unit of key, empty when it has none.
func (c *Client) Unit(key QueryKey) string {
	return key.Unit()
}

// Reconnect drops the connection and blocks until the inverter is reachable
// and connected again, or ctx is done.
func (c *Client) Reconnect(ctx context.Context) error {
	c.logger.Info("solarmax: reconnecting")
	return c.conn.Reconnect(ctx)
}

func (c *Client) Close() error {
	return c.conn.Disconnect()
}

func (c *Client) queryLabel(ctx context.Context, key QueryKey) (string, error) {
	v, err := c.QuerySingle(ctx, key)
	if err != nil {
		return "", err
	}
	return v.Label, nil
}

func (c *Client) queryFloat(ctx context.Context, key QueryKey) (float64, error) {
	v, err := c.QuerySingle(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.Float(), nil
}

func (c *Client) queryInt(ctx context.Context, key QueryKey) (int64, error) {
	v, err := c.QuerySingle(ctx, key)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// Model returns the model name resolved from the TYP code.
func (c *Client) Model(ctx context.Context) (string, error) {
	return c.queryLabel(ctx, KeyType)
}

// Type returns the raw TYP code.
func (c *Client) Type(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyType)
}

func (c *Client) Status(ctx context.Context) (string, error) {
	return c.queryLabel(ctx, KeyStatus)
}

func (c *Client) AlarmCode(ctx context.Context) (string, error) {
	return c.queryLabel(ctx, KeyAlarmCode)
}

// ACOutput returns the current AC power in W.
func (c *Client) ACOutput(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyACOutput)
}

func (c *Client) OperatingHours(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyOperatingHours)
}

func (c *Client) DateYear(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyDateYear)
}

func (c *Client) DateMonth(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyDateMonth)
}

func (c *Client) DateDay(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyDateDay)
}

func (c *Client) EnergyYear(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyEnergyYear)
}

func (c *Client) EnergyMonth(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyEnergyMonth)
}

// EnergyDay returns today's yield in kWh with one decimal.
func (c *Client) EnergyDay(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyEnergyDay)
}

func (c *Client) EnergyTotal(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyEnergyTotal)
}

func (c *Client) InstalledCapacity(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyInstalledCapacity)
}

func (c *Client) MainsCycleDuration(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyMainsCycleDuration)
}

func (c *Client) MainsFrequency(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyMainsFrequency)
}

func (c *Client) NetworkAddress(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyNetworkAddress)
}

func (c *Client) RelativeOutput(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyRelativeOutput)
}

func (c *Client) SoftwareVersion(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeySoftwareVersion)
}

func (c *Client) VoltageDC(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyVoltageDC)
}

func (c *Client) VoltagePhaseOne(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyVoltagePhaseOne)
}

func (c *Client) CurrentDC(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyCurrentDC)
}

func (c *Client) CurrentPhaseOne(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, KeyCurrentPhaseOne)
}

func (c *Client) TemperaturePowerUnitOne(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyTemperaturePowerUnitOne)
}

func (c *Client) TimeHours(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyTimeHours)
}

func (c *Client) TimeMinutes(ctx context.Context) (int64, error) {
	return c.queryInt(ctx, KeyTimeMinutes)
}
