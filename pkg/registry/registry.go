// Package registry implements the Service Registry Gate: a thin layer over
// a set of registered service domains, backed by the broker's set commands,
// that the Service Caller consults before dispatching a call.
package registry

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/cache"
	cachememory "github.com/chris-alexander-pop/ti-engine/pkg/cache/adapters/memory"
	"github.com/chris-alexander-pop/ti-engine/pkg/concurrency/distlock"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
)

const defaultKeyPrefix = "registry:"

// Gate wraps SISMEMBER/SADD against <registryKeyPrefix><serviceDomainName>.
//
// Verify is on the hot path of every outbound service call, so a Gate also
// keeps a local Bloom-filtered cache of everything it has already confirmed
// registered. A Bloom miss skips the local lookup and goes to the broker. A
// Bloom hit only means "maybe", so it is checked against the local cache;
// when the entry is there, Verify returns without a broker round trip.
type Gate struct {
	client    broker.Client
	locker    distlock.Locker
	keyPrefix string
	local     cache.Cache
}

// Option customizes a Gate at construction time.
type Option func(*Gate)

// WithKeyPrefix overrides the default "registry:" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(g *Gate) { g.keyPrefix = prefix }
}

// WithLocker enables distlock-guarded bulk loads, serializing concurrent
// RegisterAll calls for the same domain across process instances.
func WithLocker(locker distlock.Locker) Option {
	return func(g *Gate) { g.locker = locker }
}

func New(client broker.Client, opts ...Option) *Gate {
	g := &Gate{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		local: cache.NewInstrumentedCache(
			cache.NewBloomCache(cachememory.New(), cache.BloomCacheConfig{ExpectedElements: 10000, FalsePositiveRate: 0.01}),
		),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) key(serviceDomainName string) string {
	return g.keyPrefix + serviceDomainName
}

func (g *Gate) localKey(serviceDomainName, serviceAlias string) string {
	return serviceDomainName + ":" + serviceAlias
}

// Verify reports whether serviceAlias is registered in serviceDomainName.
func (g *Gate) Verify(ctx context.Context, serviceDomainName, serviceAlias string) error {
	localKey := g.localKey(serviceDomainName, serviceAlias)
	var cached bool
	if err := g.local.Get(ctx, localKey, &cached); err == nil {
		return nil
	}

	res, err := g.client.CallCommand(ctx, "SISMEMBER", g.key(serviceDomainName), serviceAlias)
	if err != nil {
		return errors.Wrap(err, "registry lookup failed")
	}
	if !isMember(res) {
		return errors.ErrServiceNotRegistered(serviceAlias, serviceDomainName)
	}
	_ = g.local.Set(ctx, localKey, true, 0)
	return nil
}

// Register adds serviceAlias to serviceDomainName's registered set.
func (g *Gate) Register(ctx context.Context, serviceDomainName, serviceAlias string) error {
	if _, err := g.client.CallCommand(ctx, "SADD", g.key(serviceDomainName), serviceAlias); err != nil {
		return errors.Wrap(err, "registry write failed")
	}
	_ = g.local.Set(ctx, g.localKey(serviceDomainName, serviceAlias), true, 0)
	return nil
}

// RegisterResult summarizes a bulk load: it never aborts partway through,
// it keeps loading and reports the count of failures at the end.
type RegisterResult struct {
	Registered int
	Failed     int
}

// RegisterAll registers every alias in aliases under serviceDomainName,
// continuing past individual failures rather than aborting the batch. When
// the Gate was built WithLocker, the whole batch is serialized behind a
// distributed lock keyed by the domain so two instances bulk-loading the
// same domain at startup don't race each other's SADD calls.
func (g *Gate) RegisterAll(ctx context.Context, serviceDomainName string, aliases []string) RegisterResult {
	if g.locker == nil {
		return g.registerAllUnlocked(ctx, serviceDomainName, aliases)
	}

	lock := g.locker.NewLock("registry-load:"+serviceDomainName, 30*time.Second)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		logger.L().WarnContext(ctx, "registry bulk load proceeding without lock", "domain", serviceDomainName, "error", err)
		return g.registerAllUnlocked(ctx, serviceDomainName, aliases)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.L().WarnContext(ctx, "failed to release registry load lock", "domain", serviceDomainName, "error", err)
		}
	}()

	return g.registerAllUnlocked(ctx, serviceDomainName, aliases)
}

func (g *Gate) registerAllUnlocked(ctx context.Context, serviceDomainName string, aliases []string) RegisterResult {
	result := RegisterResult{}
	for _, alias := range aliases {
		if err := g.Register(ctx, serviceDomainName, alias); err != nil {
			logger.L().WarnContext(ctx, "registry bulk load entry failed", "domain", serviceDomainName, "alias", alias, "error", err)
			result.Failed++
			continue
		}
		result.Registered++
	}
	return result
}

func isMember(v any) bool {
	switch t := v.(type) {
	case int64:
		return t == 1
	case string:
		return t == "1"
	default:
		return false
	}
}
