package solarmax

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame is a checksum-validated frame split into its header and body fields.
type Frame struct {
	Source      string
	Destination string
	Length      string
	Port        string
	Payload     string
	CRC         string
}

// ParseFrame validates the checksum of data and splits it into its fields.
// A frame with an empty body yields empty Port and Payload.
func ParseFrame(data string) (*Frame, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrMalformedFrame, len(data))
	}

	inCRC := data[len(data)-5 : len(data)-1]
	checkCRC := Checksum(data[1 : len(data)-5])
	if inCRC != checkCRC {
		return nil, fmt.Errorf("%w: got %s, computed %s", ErrChecksumMismatch, inCRC, checkCRC)
	}

	sections := strings.Split(data, "|")
	if len(sections) < 3 {
		return nil, fmt.Errorf("%w: missing '|' delimiter", ErrMalformedFrame)
	}
	header := strings.Split(strings.TrimPrefix(sections[0], "{"), ";")
	if len(header) != 3 {
		return nil, fmt.Errorf("%w: invalid header %q", ErrMalformedFrame, sections[0])
	}

	frame := &Frame{
		Source:      header[0],
		Destination: header[1],
		Length:      header[2],
		CRC:         inCRC,
	}
	if sections[1] == "" {
		return frame, nil
	}
	port, payload, found := strings.Cut(sections[1], ":")
	if !found {
		return nil, fmt.Errorf("%w: missing ':' after port", ErrMalformedFrame)
	}
	frame.Port = port
	frame.Payload = payload
	return frame, nil
}

// DecodeResponse validates a response frame and decodes every field of its
// payload through the value registry.
//
// An empty body, an empty payload or a port other than the query port is
// not an error and yields an empty result. A checksum or structure failure discards the
// whole frame.
func DecodeResponse(data string) (map[QueryKey]Value, error) {
	frame, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}

	result := make(map[QueryKey]Value)
	if frame.Port != PortQuery || frame.Payload == "" {
		return result, nil
	}

	for _, element := range strings.Split(frame.Payload, ";") {
		field, err := splitField(element)
		if err != nil {
			return nil, err
		}
		raw, err := strconv.ParseUint(field.Value, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value of %s is not hex: %q", ErrMalformedFrame, field.Key, field.Value)
		}
		result[field.Key] = decodeValue(field.Key, raw)
	}
	return result, nil
}

func splitField(element string) (Field, error) {
	parts := strings.Split(element, "=")
	if len(parts) != 2 {
		return Field{}, fmt.Errorf("%w: invalid field %q", ErrMalformedFrame, element)
	}
	// trailing ",<qualifier>" has no documented meaning and is dropped
	value, _, _ := strings.Cut(parts[1], ",")
	return Field{
		Key:   QueryKey(parts[0]),
		Value: value,
	}, nil
}
