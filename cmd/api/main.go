package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/solarmax2mqtt/internal/adapter/actor"
	"github.com/berfenger/solarmax2mqtt/internal/config"
	"github.com/berfenger/solarmax2mqtt/internal/core/actor"
	"github.com/berfenger/solarmax2mqtt/internal/metrics"
	"github.com/berfenger/solarmax2mqtt/internal/server"
	"github.com/berfenger/solarmax2mqtt/internal/util/actorutil"
	"github.com/berfenger/solarmax2mqtt/pkg/solarmax"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, ctx context.Context, done chan bool) {
	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// Create context that listens for the interrupt signal from the OS.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	inverterMetrics := metrics.NewInverterMetrics(registry)

	// connect to the inverter, waiting until it is reachable
	client, err := connectInverter(sigCtx, cfg, inverterMetrics, logger)
	if err != nil {
		logger.Error("inverter connection failed", zap.Error(err))
		return
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, inverterActorProvider(cfg, client, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("master actor", zap.Error(err))
		return
	}

	server := server.NewServer(*cfg, ctx, pid, registry)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, sigCtx, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func connectInverter(ctx context.Context, cfg *config.Config, inverterMetrics *metrics.InverterMetrics, logger *zap.Logger) (*solarmax.Client, error) {
	opts := []solarmax.Option{
		solarmax.WithLogger(logger),
		solarmax.WithReconnectInterval(cfg.Inverter.ReconnectInterval()),
		solarmax.WithRateLimit(cfg.Inverter.MinQueryInterval()),
		solarmax.WithInstrument(inverterMetrics.Instrument()),
	}
	if cfg.Inverter.SkipProbe {
		opts = append(opts, solarmax.WithProber(solarmax.AlwaysReachable))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Inverter.ReconnectInterval()
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0

	return backoff.RetryNotifyWithData(func() (*solarmax.Client, error) {
		client, err := solarmax.NewClient(ctx, cfg.Inverter.ClientConfig(), opts...)
		if errors.Is(err, solarmax.ErrInvalidAddress) {
			return nil, backoff.Permanent(err)
		}
		return client, err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("inverter not available", zap.Error(err), zap.Duration("retry", next))
	})
}

func inverterActorProvider(cfg *config.Config, client *solarmax.Client, logger *zap.Logger) actor.InverterActorProvider {
	opts := adactor.InverterActorOpts{
		QueryTimeout: cfg.Inverter.QueryTimeout(),
	}
	return func(es *eventstream.EventStream) *adactor.InverterActor {
		return adactor.NewInverterActor(client, es, opts, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
