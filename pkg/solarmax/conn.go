package solarmax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// the inverter answers a query with a single segment that fits this buffer
const receiveBufferSize = 255

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ConnectionManager owns the TCP socket to one inverter.
//
// All methods are safe for concurrent use, but Send and Receive must be
// paired by the caller: responses carry no request identifier.
// Reconnect holds the socket lock until it returns; cancel its context
// before calling Close from another goroutine.
type ConnectionManager struct {
	cfg        Config
	dialer     Dialer
	prober     Prober
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
	instrument instruments

	mu    sync.Mutex
	conn  net.Conn
	state atomic.Int32
}

func NewConnectionManager(cfg Config, opts ...Option) *ConnectionManager {
	o := applyOptions(opts)
	return newConnectionManager(cfg.withDefaults(), o)
}

func newConnectionManager(cfg Config, o *options) *ConnectionManager {
	return &ConnectionManager{
		cfg:        cfg,
		dialer:     o.dialer,
		prober:     o.prober,
		newBackOff: o.newBackOff,
		logger:     o.logger.With(zap.String("host", cfg.Host), zap.Int("port", cfg.Port)),
		instrument: o.instrument,
	}
}

func (m *ConnectionManager) State() State {
	return State(m.state.Load())
}

func (m *ConnectionManager) Connected() bool {
	return m.State() == StateConnected
}

func (m *ConnectionManager) setState(state State) {
	if State(m.state.Swap(int32(state))) != state {
		m.logger.Debug("solarmax: connection state", zap.Stringer("state", state))
		m.instrument.recordState(state)
	}
}

// Probe reports whether the host answers a single reachability probe.
func (m *ConnectionManager) Probe(ctx context.Context) bool {
	return m.prober.Probe(ctx, m.cfg.Host)
}

// Connect probes the host and opens the TCP connection. It is a no-op when
// already connected.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

func (m *ConnectionManager) connectLocked(ctx context.Context) error {
	if m.conn != nil {
		return nil
	}
	m.setState(StateConnecting)

	if !m.Probe(ctx) {
		m.setState(StateDisconnected)
		return fmt.Errorf("%w: %s", ErrHostUnreachable, m.cfg.Host)
	}

	dialCtx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := m.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		m.setState(StateDisconnected)
		m.instrument.recordError("connect", err)
		return fmt.Errorf("%w: %s: %w", ErrConnectFailed, addr, err)
	}

	m.conn = conn
	m.setState(StateConnected)
	m.logger.Info("solarmax: connected")
	return nil
}

// Reconnect closes the current connection and waits until the host is
// reachable again, then connects.
//
// Unreachable hosts are retried after each interval of the backoff policy
// until ctx is done. A connect failure on a reachable host is returned.
func (m *ConnectionManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	b := m.newBackOff()
	b.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.connectLocked(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrHostUnreachable) {
			return err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		m.logger.Info("solarmax: inverter not reachable, waiting", zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Send writes the whole frame to the socket.
func (m *ConnectionManager) Send(frame string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return ErrNotConnected
	}
	if m.cfg.WriteTimeout > 0 {
		if err := m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
			m.closeLocked()
			return fmt.Errorf("solarmax: set write deadline: %w", err)
		}
	}
	if _, err := io.WriteString(m.conn, frame); err != nil {
		m.closeLocked()
		m.instrument.recordError("send", err)
		return fmt.Errorf("solarmax: send: %w", err)
	}
	return nil
}

// Receive blocks until at least one byte arrives and returns what a single
// read delivered. The protocol has no length framing; the inverter is
// expected to deliver each response in one segment.
func (m *ConnectionManager) Receive() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return "", ErrNotConnected
	}
	if m.cfg.ReadTimeout > 0 {
		if err := m.conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout)); err != nil {
			m.closeLocked()
			return "", fmt.Errorf("solarmax: set read deadline: %w", err)
		}
	}

	buf := make([]byte, receiveBufferSize)
	for {
		n, err := m.conn.Read(buf)
		if n > 0 {
			return string(buf[:n]), nil
		}
		if err != nil {
			m.closeLocked()
			m.instrument.recordError("receive", err)
			return "", fmt.Errorf("solarmax: receive: %w", err)
		}
	}
}

// Disconnect closes the socket. The manager can connect again afterwards.
func (m *ConnectionManager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *ConnectionManager) closeLocked() error {
	var err error
	if m.conn != nil {
		err = m.conn.Close()
		m.conn = nil
		m.logger.Debug("solarmax: connection closed")
	}
	m.setState(StateDisconnected)
	return err
}
