// Command instanced is a minimal bootstrapper for a messaging-core
// instance: load configuration, wire it up, register any local service
// handlers, and run until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	distlockredis "github.com/chris-alexander-pop/ti-engine/pkg/concurrency/distlock/adapters/redis"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/executor"
	"github.com/chris-alexander-pop/ti-engine/pkg/instance"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
	"github.com/chris-alexander-pop/ti-engine/pkg/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init(logger.Config{Level: "INFO", Format: "JSON"})

	cfg, err := instance.LoadConfig()
	if err != nil {
		logger.L().Error("failed to load instance configuration", "error", err)
		os.Exit(1)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{ServiceName: cfg.ServiceDomainName})
	if err != nil {
		logger.L().Error("failed to initialize telemetry, continuing without tracing", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	// A separate connection carries distributed-lock traffic so a slow or
	// stuck registry bulk load never competes with the broker client's own
	// command pipeline for the same connection.
	lockClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Broker.Host, cfg.Broker.Port),
		Username: cfg.Broker.User,
		Password: cfg.Broker.AuthKey,
		DB:       cfg.Broker.DefaultDB,
	})
	locker := distlockredis.New(lockClient, cfg.ServiceRegistryAddress+"lock:")
	defer lockClient.Close()

	inst := instance.New(cfg, locker)

	if inst.Executor != nil {
		registerExampleHandlers(inst.Executor)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := inst.Start(ctx); err != nil {
		logger.L().Error("failed to start instance", "error", err)
		os.Exit(1)
	}

	logger.L().Info("instance started", "instanceId", cfg.InstanceID, "domain", cfg.ServiceDomainName, "class", cfg.InstanceClass)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := inst.Stop(shutdownCtx); err != nil {
		logger.L().Error("error during instance shutdown", "error", err)
	}
}

func registerExampleHandlers(exec *executor.ServiceExecutor) {
	exec.AddServiceHandler(
		envelope.ServiceDefinition{ServiceAlias: "echo", ServiceVersion: "1.0.0"},
		func(ctx context.Context, def envelope.ServiceDefinition, params envelope.ServiceParams, provider *executor.ServiceExecutor) (any, error) {
			return params, nil
		},
	)
}
