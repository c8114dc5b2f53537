// Package instance is the composition root: it wires one broker.Client, one
// memcache.MemoryCache, one exchange.Exchange, one dispatcher.Dispatcher, a
// registry.Gate, and — depending on the instance's Class — a
// caller.ServiceCaller and/or executor.ServiceExecutor.
package instance

import (
	"context"

	redisbroker "github.com/chris-alexander-pop/ti-engine/pkg/broker/adapters/redis"
	"github.com/chris-alexander-pop/ti-engine/pkg/caller"
	"github.com/chris-alexander-pop/ti-engine/pkg/concurrency/distlock"
	"github.com/chris-alexander-pop/ti-engine/pkg/config"
	"github.com/chris-alexander-pop/ti-engine/pkg/dispatcher"
	"github.com/chris-alexander-pop/ti-engine/pkg/exchange"
	"github.com/chris-alexander-pop/ti-engine/pkg/executor"
	"github.com/chris-alexander-pop/ti-engine/pkg/memcache"
	"github.com/chris-alexander-pop/ti-engine/pkg/registry"
)

// Instance is a running service process: one connection to the broker,
// composed up through the exchange/dispatcher into whichever of
// ServiceCaller/ServiceExecutor its Class calls for.
type Instance struct {
	Config Config

	client     *redisbroker.Adapter
	memCache   *memcache.MemoryCache
	exchange   *exchange.Exchange
	dispatcher *dispatcher.Dispatcher
	gate       *registry.Gate

	Caller      *caller.ServiceCaller
	Executor    *executor.ServiceExecutor
	SystemCache *memcache.SystemCache
}

// LoadConfig reads instance configuration from the environment (and .env),
// validating it the way every other component in this tree does.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// New wires an Instance together from cfg. It does not yet connect to the
// broker or start receiving — call Start for that.
func New(cfg Config, locker distlock.Locker) *Instance {
	client := redisbroker.New(cfg.Broker)

	mc := memcache.New(client, cfg.MemCache)
	ex := exchange.New(client.Identifier(), cfg.ServiceDomainName, cfg.InstanceID, mc, cfg.Exchange, cfg.Handler)
	d := dispatcher.New(ex)

	gateOpts := []registry.Option{registry.WithKeyPrefix(cfg.ServiceRegistryAddress)}
	if locker != nil {
		gateOpts = append(gateOpts, registry.WithLocker(locker))
	}
	gate := registry.New(client, gateOpts...)

	inst := &Instance{
		Config:      cfg,
		client:      client,
		memCache:    mc,
		exchange:    ex,
		dispatcher:  d,
		gate:        gate,
		SystemCache: memcache.NewSystemCache(client),
	}

	if cfg.InstanceClass == ClassConsumer || cfg.InstanceClass == ClassBoth {
		inst.Caller = caller.New(d, gate, cfg.executionTimeout())
	}
	if cfg.InstanceClass == ClassProvider || cfg.InstanceClass == ClassBoth {
		inst.Executor = executor.New(d)
	}

	return inst
}

// Start connects to the broker and enables the exchange directions this
// instance's Class requires.
func (inst *Instance) Start(ctx context.Context) error {
	if err := inst.memCache.Initialize(ctx); err != nil {
		return err
	}

	configureInbound := inst.Config.InstanceClass == ClassProvider || inst.Config.InstanceClass == ClassBoth
	configureOutbound := inst.Config.InstanceClass == ClassConsumer || inst.Config.InstanceClass == ClassBoth

	go inst.exchange.EnableMessaging(ctx, configureInbound, configureOutbound)
	return nil
}

// Stop disables messaging and tears down the broker connection.
func (inst *Instance) Stop(ctx context.Context) error {
	inst.exchange.DisableMessaging()
	if inst.Executor != nil {
		inst.Executor.Stop()
	}
	return inst.memCache.ShutDown(ctx)
}
