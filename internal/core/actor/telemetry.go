package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/solarmax2mqtt/internal/config"
	"github.com/berfenger/solarmax2mqtt/internal/core/domain"
	"github.com/berfenger/solarmax2mqtt/internal/core/events"
	. "github.com/berfenger/solarmax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// TelemetryActor polls the configured keys and publishes every decoded value
// on the event stream. Keys are split in batches of KeysPerQuery so a single
// frame stays small.
type TelemetryActor struct {
	behavior   actor.Behavior
	stash      *Stash
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	inverterActor *actor.PID
	eventStream   *eventstream.EventStream
	batches       [][]solarmax.QueryKey
	interval      time.Duration
	queryTimeout  time.Duration

	pending    int
	lastErr    error
	lastPollOk bool
	failures   uint

	logger *zap.Logger
}

type telemetryTick struct {
}

func NewTelemetryActor(config *config.Config, inverterActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *TelemetryActor {
	batches := batchKeys(config.MonitorConfig.QueryKeys(), int(config.MonitorConfig.KeysPerQuery))
	act := &TelemetryActor{
		inverterActor: inverterActor,
		eventStream:   eventStream,
		batches:       batches,
		interval:      config.MonitorConfig.PollInterval(),
		queryTimeout:  queryTimeout(config, len(batches)),
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		logger:        ActorLogger(domain.ACTOR_ID_TELEMETRY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *TelemetryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TelemetryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("telemetry@starting started", zap.Int("batches", len(state.batches)), zap.Duration("interval", state.interval))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.publishPollInterval()
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
		// first poll right away
		ctx.Send(ctx.Self(), telemetryTick{})
	case *actor.Restarting:
	default:
		state.logger.Debug("telemetry@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TelemetryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("telemetry@default: ActorHealthRequest")
		ctx.Respond(state.health())
	case telemetryTick:
		state.logger.Debug("telemetry@default tick")
		state.poll(ctx)
	case domain.PollNowRequest:
		state.logger.Debug("telemetry@default PollNowRequest")
		state.poll(ctx)
	case domain.SetPollIntervalRequest:
		state.setInterval(ctx, msg)
	case *actor.Stopping:
		state.cancel()
	default:
		state.logger.Debug("telemetry@default: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TelemetryActor) WaitingValuesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.QueryResponse:
		state.pending--
		if msg.HasResponseError() {
			state.lastErr = msg.GetResponseError()
			state.logger.Warn("telemetry@waiting QueryResponse error", zap.Error(state.lastErr))
		} else {
			for _, ev := range events.ValuesToUpdateEvents(msg.Values) {
				state.eventStream.Publish(ev)
			}
		}
		if state.pending > 0 {
			return
		}
		state.lastPollOk = state.lastErr == nil
		if state.lastPollOk {
			state.failures = 0
			// refreshes the retained link state, also for late MQTT sessions
			state.eventStream.Publish(domain.InverterConnectionEvent{Connected: true})
		} else {
			state.failures++
		}
		state.schedule(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(state.health())
	case telemetryTick, domain.PollNowRequest:
		// a poll is already running
	case *actor.Stopping:
		state.cancel()
	default:
		state.logger.Debug("telemetry@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TelemetryActor) poll(ctx actor.Context) {
	state.cancel()
	state.pending = len(state.batches)
	state.lastErr = nil
	if state.pending == 0 {
		state.schedule(ctx)
		return
	}
	for _, keys := range state.batches {
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.inverterActor, domain.QueryRequest{Keys: keys}, state.queryTimeout), func(err error) any {
			return domain.QueryResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
	}
	state.behavior.BecomeStacked(state.WaitingValuesReceive)
}

func (state *TelemetryActor) setInterval(ctx actor.Context, msg domain.SetPollIntervalRequest) {
	state.logger.Info("telemetry@default SetPollIntervalRequest", zap.Duration("interval", msg.Interval))
	resp := domain.SetPollIntervalResponse{}
	if msg.Interval < time.Second {
		resp.ResponseError = fmt.Errorf("poll interval too short: %s", msg.Interval)
	} else {
		state.interval = msg.Interval
		state.schedule(ctx)
		state.publishPollInterval()
	}
	resp.Interval = state.interval
	if ForRequest(msg).ExpectsReply(ctx) {
		ForRequest(msg).Respond(ctx, resp)
	}
}

func (state *TelemetryActor) schedule(ctx actor.Context) {
	state.cancel()
	state.cancelTick = state.scheduler.RequestOnce(state.interval, ctx.Self(), telemetryTick{})
}

func (state *TelemetryActor) cancel() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
}

func (state *TelemetryActor) publishPollInterval() {
	for _, ev := range events.PollIntervalUpdateEvents(state.interval.Seconds()) {
		state.eventStream.Publish(ev)
	}
}

func (state *TelemetryActor) health() domain.ActorHealthResponse {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_TELEMETRY,
		Healthy: true,
		State:   "polling",
	}
	if state.failures > 0 {
		resp.State = fmt.Sprintf("failing (%d)", state.failures)
	}
	return resp
}

// batchKeys splits keys into consecutive groups of at most size keys.
func batchKeys(keys []solarmax.QueryKey, size int) [][]solarmax.QueryKey {
	if size <= 0 {
		size = len(keys)
	}
	var batches [][]solarmax.QueryKey
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		batches = append(batches, keys[start:end])
	}
	return batches
}

// queryTimeout covers a whole cycle: the inverter actor serves the batches
// one after the other.
func queryTimeout(config *config.Config, batches int) time.Duration {
	return time.Duration(max(batches, 1))*config.Inverter.QueryTimeout() + time.Second
}
