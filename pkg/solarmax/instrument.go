package solarmax

import (
	"time"
)

// Instrument receives timing, error and connection state notifications from
// a Client and its ConnectionManager. Nil callbacks are skipped.
type Instrument struct {
	RecordTime  func(op string, duration time.Duration)
	RecordError func(op string, err error)
	RecordState func(state State)
}

type instruments []Instrument

func (inst instruments) recordTimer(op string) func() {
	if len(inst) == 0 {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range inst {
			if inst[i].RecordTime != nil {
				inst[i].RecordTime(op, duration)
			}
		}
	}
}

func (inst instruments) recordError(op string, err error) {
	if err == nil {
		return
	}
	for i := range inst {
		if inst[i].RecordError != nil {
			inst[i].RecordError(op, err)
		}
	}
}

func (inst instruments) recordState(state State) {
	for i := range inst {
		if inst[i].RecordState != nil {
			inst[i].RecordState(state)
		}
	}
}
