package events

import (
	"sort"

	. "github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
)

// ValuesToUpdateEvents converts a decoded query response into sensor update
// events, ordered by key.
func ValuesToUpdateEvents(values map[solarmax.QueryKey]solarmax.Value) []any {
	var events []any

	keys := make([]solarmax.QueryKey, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		events = append(events, ValueToUpdateEvent(values[k]))
	}

	return events
}

func ValueToUpdateEvent(value solarmax.Value) any {
	if value.IsEnum() {
		return TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SensorId(value.Key),
			},
			Value: value.Label,
		}
	}
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SensorId(value.Key),
		},
		Value:    value.Float(),
		Decimals: uint(value.Decimals),
	}
}

func InverterConnectionUpdateEvent(connected bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_INVERTER_CONNECTED,
		},
		Value: connected,
	}
}

func PollIntervalUpdateEvents(seconds float64) []any {
	var events []any
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_POLL_INTERVAL,
		},
		Value: seconds,
	})
	return events
}
