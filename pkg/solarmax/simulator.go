package solarmax

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Simulator is an in-process inverter answering query frames on a local TCP
// port. Values are configured as the hex strings the device would send,
// optionally with a ",qualifier" suffix.
type Simulator struct {
	address  int
	listener net.Listener
	logger   *zap.Logger

	mu       sync.Mutex
	values   map[QueryKey]string
	corrupt  bool
	silent   bool
	requests []string
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// NewSimulator listens on 127.0.0.1 on a random port.
func NewSimulator(address int, logger *zap.Logger) (*Simulator, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		address:  address,
		listener: listener,
		logger:   logger.Named("simulator"),
		values:   make(map[QueryKey]string),
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Simulator) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *Simulator) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Config returns a client configuration pointing at the simulator.
func (s *Simulator) Config() Config {
	return Config{
		Host:    s.Host(),
		Port:    s.Port(),
		Address: s.address,
	}
}

func (s *Simulator) Set(key QueryKey, hexValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = hexValue
}

func (s *Simulator) SetValues(values map[QueryKey]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

func (s *Simulator) Unset(key QueryKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// CorruptChecksum makes every following response carry a wrong CRC.
func (s *Simulator) CorruptChecksum(corrupt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = corrupt
}

// Silent makes the simulator close connections instead of answering.
func (s *Simulator) Silent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// DropConnections closes every open client connection.
func (s *Simulator) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Requests returns the frames received so far.
func (s *Simulator) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Simulator) Close() error {
	err := s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
	return err
}

func (s *Simulator) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Simulator) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	buf := make([]byte, receiveBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		request := string(buf[:n])
		response, ok := s.respond(request)
		if !ok {
			return
		}
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
	}
}

func (s *Simulator) respond(request string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, request)
	if s.silent {
		return "", false
	}

	frame, err := ParseFrame(request)
	if err != nil {
		s.logger.Debug("invalid request", zap.String("frame", request), zap.Error(err))
		return "", false
	}
	dest, err := strconv.ParseUint(frame.Destination, 16, 8)
	if err != nil || int(dest) != s.address || frame.Port != PortQuery {
		s.logger.Debug("request not for this device", zap.String("frame", request))
		return "", false
	}

	var fields []Field
	for _, key := range strings.Split(frame.Payload, ";") {
		if value, ok := s.values[QueryKey(key)]; ok {
			fields = append(fields, Field{Key: QueryKey(key), Value: value})
		}
	}
	response := EncodeResponse(s.address, fields)
	if s.corrupt {
		response = corruptCRC(response)
	}
	return response, true
}

func corruptCRC(frame string) string {
	b := []byte(frame)
	i := len(b) - 2
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}
