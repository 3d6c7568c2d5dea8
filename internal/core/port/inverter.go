package port

import (
	"context"

	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"
)

// InverterClient is the subset of *solarmax.Client used by the inverter actor.
type InverterClient interface {
	Query(ctx context.Context, keys ...solarmax.QueryKey) (map[solarmax.QueryKey]solarmax.Value, error)
	Reconnect(ctx context.Context) error
	Close() error
	Connected() bool
	Address() int
}
