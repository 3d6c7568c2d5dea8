package solarmax

import (
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultReconnectInterval is the wait between reachability probes while reconnecting.
	DefaultReconnectInterval = 60 * time.Second
)

// Config holds the connection parameters of one inverter.
type Config struct {
	Host    string
	Port    int
	Address int

	// Zero timeouts block indefinitely.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultTCPPort
	}
	if cfg.Address == 0 {
		cfg.Address = MinDeviceAddress
	}
	return cfg
}

type options struct {
	logger     *zap.Logger
	dialer     Dialer
	prober     Prober
	newBackOff func() backoff.BackOff
	limiter    *rate.Limiter
	instrument instruments
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: zap.NewNop(),
		dialer: &net.Dialer{},
		prober: ExecProber{},
		newBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(DefaultReconnectInterval)
		},
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithDialer(dialer Dialer) Option {
	return func(o *options) {
		if dialer != nil {
			o.dialer = dialer
		}
	}
}

func WithProber(prober Prober) Option {
	return func(o *options) {
		if prober != nil {
			o.prober = prober
		}
	}
}

// WithBackOff sets the wait policy of Reconnect. A policy returning
// backoff.Stop ends the reconnect loop with ErrHostUnreachable.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *options) {
		if newBackOff != nil {
			o.newBackOff = newBackOff
		}
	}
}

// WithReconnectInterval waits a fixed interval between probes.
func WithReconnectInterval(interval time.Duration) Option {
	return WithBackOff(func() backoff.BackOff {
		return backoff.NewConstantBackOff(interval)
	})
}

// WithRateLimit enforces a minimum interval between two queries.
func WithRateLimit(minInterval time.Duration) Option {
	return func(o *options) {
		if minInterval > 0 {
			o.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
		}
	}
}

func WithInstrument(instrument Instrument) Option {
	return func(o *options) {
		o.instrument = append(o.instrument, instrument)
	}
}
