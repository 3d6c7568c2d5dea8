package solarmax

import (
	"context"
	"net"
	"os/exec"
	"runtime"
)

// Prober checks whether a host answers on the network layer.
type Prober interface {
	Probe(ctx context.Context, host string) bool
}

type ProberFunc func(ctx context.Context, host string) bool

func (f ProberFunc) Probe(ctx context.Context, host string) bool {
	return f(ctx, host)
}

// AlwaysReachable skips the reachability check.
var AlwaysReachable Prober = ProberFunc(func(context.Context, string) bool { return true })

// ExecProber sends a single ICMP echo through the platform ping utility.
type ExecProber struct{}

func (ExecProber) Probe(ctx context.Context, host string) bool {
	cmd := exec.CommandContext(ctx, "ping", pingArgs(runtime.GOOS, host)...)
	return cmd.Run() == nil
}

// pingArgs builds the arguments for a single echo request on goos.
func pingArgs(goos, host string) []string {
	countFlag := "-c"
	if goos == "windows" {
		countFlag = "-n"
	}
	return []string{countFlag, "1", host}
}

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
