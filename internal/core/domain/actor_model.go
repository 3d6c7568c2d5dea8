package domain

import (
	"time"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_TELEMETRY    = "telemetry"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// QueryRequest asks the inverter actor for a set of values in one frame.
type QueryRequest struct {
	ActorRequestMixIn
	Keys []solarmax.QueryKey
}

type QueryResponse struct {
	ActorResponseMixIn
	Values map[solarmax.QueryKey]solarmax.Value
}

type GetDeviceInfoRequest struct {
	ActorRequestMixIn
}

type GetDeviceInfoResponse struct {
	ActorResponseMixIn
	Info *DeviceInfo
}

// ReconnectRequest drops the inverter connection and reconnects in the background.
type ReconnectRequest struct {
	ActorRequestMixIn
}

type ReconnectResponse struct {
	ActorResponseMixIn
}

// PollNowRequest triggers an immediate telemetry cycle.
type PollNowRequest struct {
	ActorRequestMixIn
}

type SetPollIntervalRequest struct {
	ActorRequestMixIn
	Interval time.Duration
}

type SetPollIntervalResponse struct {
	ActorResponseMixIn
	Interval time.Duration
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Buttons      []GenericButton
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
