package solarmax

import "errors"

var (
	// ErrInvalidAddress is returned when a device address is outside [1,250].
	ErrInvalidAddress = errors.New("solarmax: invalid device address")

	// ErrHostUnreachable is returned when the reachability probe fails before connecting.
	ErrHostUnreachable = errors.New("solarmax: inverter not reachable")

	// ErrConnectFailed is returned when the TCP connection cannot be established.
	ErrConnectFailed = errors.New("solarmax: could not connect to host")

	// ErrChecksumMismatch is returned when a response checksum does not match its content.
	ErrChecksumMismatch = errors.New("solarmax: checksum mismatch")

	// ErrMalformedFrame is returned when a frame cannot be split into its fields.
	ErrMalformedFrame = errors.New("solarmax: malformed frame")

	// ErrNotConnected is returned when a query is issued without an open connection.
	ErrNotConnected = errors.New("solarmax: not connected")

	// ErrKeyNotFound is returned when a response lacks the requested key.
	ErrKeyNotFound = errors.New("solarmax: key not in response")
)
