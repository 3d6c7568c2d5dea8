package solarmax

import (
	"strconv"
)

// Value is one decoded field of a response frame.
//
// Numeric kinds carry the scaled value in Number. Status, alarm and model
// codes carry the raw code in Raw and the resolved text in Label.
type Value struct {
	Key      QueryKey
	Kind     ValueKind
	Raw      uint64
	Number   float64
	Decimals int
	Label    string
}

func (v Value) IsEnum() bool {
	return v.Kind == KindStatusCode || v.Kind == KindAlarmCode || v.Kind == KindModelCode
}

func (v Value) Int() int64 {
	return int64(v.Raw)
}

func (v Value) Float() float64 {
	if v.IsEnum() {
		return float64(v.Raw)
	}
	return v.Number
}

func (v Value) Unit() string {
	return v.Key.Unit()
}

// String formats the value the way it is published: labels for enumerated
// codes, fixed decimals for scaled values.
func (v Value) String() string {
	switch {
	case v.IsEnum():
		return v.Label
	case v.Kind == KindScaledFloat:
		return strconv.FormatFloat(v.Number, 'f', v.Decimals, 64)
	default:
		return strconv.FormatUint(v.Raw, 10)
	}
}
