package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/core/port"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	defaultQueryTimeout = 10 * time.Second
	defaultRetryDelay   = 5 * time.Second
)

// InverterActor serializes every access to the inverter connection. While the
// link is down it answers requests with solarmax.ErrNotConnected and keeps
// reconnecting in the background.
type InverterActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	scheduler *scheduler.TimerScheduler

	client          port.InverterClient
	eventStream     *eventstream.EventStream
	queryTimeout    time.Duration
	retryDelay      time.Duration
	cancelReconnect context.CancelFunc

	logger *zap.Logger
}

type InverterActorOpts struct {
	QueryTimeout time.Duration
	// RetryDelay is the pause between failed reconnect cycles.
	RetryDelay time.Duration
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

type reconnectResult struct {
	err error
}

type reconnectTick struct {
}

func NewInverterActor(client port.InverterClient, eventStream *eventstream.EventStream, opts InverterActorOpts, logger *zap.Logger) *InverterActor {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	act := &InverterActor{
		client:       client,
		eventStream:  eventStream,
		queryTimeout: opts.QueryTimeout,
		retryDelay:   opts.RetryDelay,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_INVERTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.client.Connected() {
			state.publishConnection(true)
			state.behavior.Become(state.DefaultReceive)
		} else {
			state.publishConnection(false)
			state.startReconnect(ctx)
		}
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("inverter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   "connected",
		})
	case domain.QueryRequest:
		state.logger.Debug("inverter@default: QueryRequest", zap.Int("keys", len(msg.Keys)))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		keys := msg.Keys

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.QueryResponse, error) {
			return state.query(keys)
		}), mapTaskResult[domain.QueryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.QueryResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.queryTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.GetDeviceInfoRequest:
		state.logger.Debug("inverter@default: GetDeviceInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getDeviceInfo),
			mapTaskResult[domain.GetDeviceInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDeviceInfoResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.queryTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.ReconnectRequest:
		state.logger.Info("inverter@default: ReconnectRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.ReconnectResponse{})
		state.publishConnection(false)
		state.startReconnect(ctx)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("inverter@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingInverter(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("inverter@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		if !state.client.Connected() {
			state.logger.Warn("inverter@waiting connection lost")
			state.publishConnection(false)
			state.startReconnect(ctx)
		}
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("inverter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) ReconnectingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@reconnecting: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: false,
			State:   "reconnecting",
		})
	case domain.QueryRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.QueryResponse{
			ActorResponseMixIn: domain.ErrorResponse(solarmax.ErrNotConnected),
		})
	case domain.GetDeviceInfoRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDeviceInfoResponse{
			ActorResponseMixIn: domain.ErrorResponse(solarmax.ErrNotConnected),
		})
	case domain.ReconnectRequest:
		// already reconnecting
		actorutil.ForRequest(msg).Respond(ctx, domain.ReconnectResponse{})
	case reconnectResult:
		state.cancelReconnect = nil
		if msg.err == nil {
			state.logger.Info("inverter@reconnecting connected")
			state.publishConnection(true)
			state.behavior.Become(state.DefaultReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		if errors.Is(msg.err, context.Canceled) {
			return
		}
		state.logger.Warn("inverter@reconnecting failed", zap.Error(msg.err), zap.Duration("retry", state.retryDelay))
		state.scheduler.RequestOnce(state.retryDelay, ctx.Self(), reconnectTick{})
	case reconnectTick:
		state.startReconnect(ctx)
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("inverter@reconnecting ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) startReconnect(ctx actor.Context) {
	if state.cancelReconnect != nil {
		state.cancelReconnect()
	}
	rctx, cancel := context.WithCancel(context.Background())
	state.cancelReconnect = cancel
	client := state.client
	actorutil.NewBackgroundTaskNoError(ctx, func() *reconnectResult {
		return &reconnectResult{err: client.Reconnect(rctx)}
	}).Recover(func(err error) reconnectResult {
		return reconnectResult{err: err}
	}).PipeTo(ctx.Self())
	state.behavior.Become(state.ReconnectingReceive)
}

func (state *InverterActor) publishConnection(connected bool) {
	if state.eventStream != nil {
		state.eventStream.Publish(domain.InverterConnectionEvent{Connected: connected})
	}
}

func (state *InverterActor) stop() {
	if state.cancelReconnect != nil {
		state.cancelReconnect()
		state.cancelReconnect = nil
	}
	if err := state.client.Close(); err != nil {
		state.logger.Debug("inverter: close", zap.Error(err))
	}
}

func (state *InverterActor) query(keys []solarmax.QueryKey) (*domain.QueryResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.queryTimeout)
	defer cancel()
	values, err := state.client.Query(ctx, keys...)
	if err != nil {
		state.logger.Warn("inverter: query failed", zap.Error(err))
		return nil, err
	}
	return &domain.QueryResponse{
		Values: values,
	}, nil
}

func (state *InverterActor) getDeviceInfo() (*domain.GetDeviceInfoResponse, error) {
	resp, err := state.query(domain.DeviceInfoKeys)
	if err != nil {
		return nil, err
	}
	info, err := domain.DeviceInfoFromValues(state.client.Address(), resp.Values)
	if err != nil {
		return nil, err
	}
	return &domain.GetDeviceInfoResponse{
		Info: info,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
