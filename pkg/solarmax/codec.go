package solarmax

import (
	"fmt"
	"strings"
)

const (
	// HostAddress is the bus address reserved for an outside host (0xFB).
	HostAddress = 251

	MinDeviceAddress = 1
	MaxDeviceAddress = 250

	// PortQuery is the hex "port" of the data query service (100).
	PortQuery = "64"

	DefaultTCPPort = 12345
)

// Field is one KEY=VALUE pair of a response payload, VALUE in hex.
type Field struct {
	Key   QueryKey
	Value string
}

// Checksum sums the code points of text and formats the sum modulo 0x10000
// as 4 upper case hex digits.
func Checksum(text string) string {
	var total uint32
	for _, c := range text {
		total += uint32(c)
	}
	return fmt.Sprintf("%04X", total&0xFFFF)
}

func ValidateAddress(address int) error {
	if address < MinDeviceAddress || address > MaxDeviceAddress {
		return fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidAddress, address, MinDeviceAddress, MaxDeviceAddress)
	}
	return nil
}

// EncodeQuery builds the request frame asking the inverter at address for keys.
func EncodeQuery(keys []QueryKey, address int) (string, error) {
	if err := ValidateAddress(address); err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("%w: no keys to query", ErrMalformedFrame)
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return encodeFrame(HostAddress, address, strings.Join(parts, ";")), nil
}

// EncodeResponse builds the reply frame an inverter at address sends to the host.
func EncodeResponse(address int, fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f.Key) + "=" + f.Value
	}
	return encodeFrame(address, HostAddress, strings.Join(parts, ";"))
}

func encodeFrame(src, dest int, payload string) string {
	// fixed offsets expected by the inverter firmware: "{", "SRC;", "DEST;",
	// "LEN|", "64:", payload, "|", CRC, "}"
	length := 1 + 3 + 3 + 3 + 3 + len(payload) + 1 + 4 + 1
	preCRC := fmt.Sprintf("%02X;%02X;%02X|%s:%s|", src, dest, length, PortQuery, payload)
	return "{" + preCRC + Checksum(preCRC) + "}"
}
