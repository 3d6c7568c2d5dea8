package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/config"
	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const haDiscoveryRetryDelay = 10 * time.Second

// HADiscoveryActor publishes the Home Assistant discovery documents once the
// inverter identified itself, then idles.
type HADiscoveryActor struct {
	config     *config.Config
	behavior   actor.Behavior
	stash      *actorutil.Stash
	scheduler  *scheduler.TimerScheduler
	retryDelay time.Duration

	inverterActor        *actor.PID
	mqttActor            *actor.PID
	inverterActorHealthy bool
	mqttActorHealthy     bool
	healthyRecv          int

	logger *zap.Logger
}

type haDiscoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, inverterActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:        config,
		inverterActor: inverterActor,
		mqttActor:     mqttActor,
		retryDelay:    haDiscoveryRetryDelay,
		behavior:      actor.NewBehavior(),
		stash:         &actorutil.Stash{},
		logger:        actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.checkHealth(ctx)
	case haDiscoveryRetry:
		state.logger.Debug("hadiscovery@starting retry")
		state.checkHealth(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) checkHealth(ctx actor.Context) {
	state.healthyRecv = 0
	state.inverterActorHealthy = false
	state.mqttActorHealthy = false
	// Inverter Actor Request
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: false,
		}
	})
	// MQTT Actor Request
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
	state.behavior.Become(state.WaitingHealthyReceive)
}

func (state *HADiscoveryActor) retry(ctx actor.Context) {
	state.scheduler.RequestOnce(state.retryDelay, ctx.Self(), haDiscoveryRetry{})
	state.behavior.Become(state.StartingReceive)
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_INVERTER:
				state.inverterActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if state.inverterActorHealthy && state.mqttActorHealthy {
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.GetDeviceInfoRequest{}, 15*time.Second), func(err error) any {
					return domain.GetDeviceInfoResponse{
						ActorResponseMixIn: domain.ErrorResponse(err),
					}
				})
				state.behavior.Become(state.WaitingInfoReceive)
			} else {
				state.logger.Info("hadiscovery@healthcheck inverter or MQTT not ready, retrying", zap.Duration("delay", state.retryDelay))
				state.retry(ctx)
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDeviceInfoResponse:
		if msg.HasResponseError() {
			state.logger.Warn("hadiscovery@info GetDeviceInfoResponse error", zap.Error(msg.GetResponseError()))
			state.retry(ctx)
			return
		}
		state.logger.Debug("hadiscovery@info: GetDeviceInfoResponse", zap.Any("info", msg.Info))

		ctx.Send(state.mqttActor, DiscoveryRequest(state.config, msg.Info))
		state.behavior.Become(state.Done)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@info: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "published",
		})
	default:
		state.logger.Debug("hadiscovery@done: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// DiscoveryRequest lists every entity exposed for an inverter.
func DiscoveryRequest(config *config.Config, info *domain.DeviceInfo) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	inverterDevice := domain.InverterDevice(config.MQTT.BaseTopic, info)
	inverterDevice.ViaDevice = bridgeDevice.Id
	sensors = append(sensors, domain.InverterSensors(inverterDevice, config.MonitorConfig.QueryKeys())...)

	return domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Buttons:      domain.BridgeButtons(bridgeDevice),
		InputNumbers: domain.BridgeInputNumbers(bridgeDevice, config.MonitorConfig.PollInterval().Seconds()),
	}
}
