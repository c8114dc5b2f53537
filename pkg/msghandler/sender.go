package msghandler

import (
	"context"

	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/memcache"
)

// Sender is the transport step of the messaging pipeline: store the payload,
// replace it with the store key, optionally hash, and push onto the queue
// named by queuePrefix+route.
type Sender struct {
	base
	memcache    *memcache.MemoryCache
	queuePrefix string
}

func NewSender(identifier string, cfg HandlerConfig, mc *memcache.MemoryCache, queuePrefix string) *Sender {
	s := &Sender{base: newBase(identifier, cfg), memcache: mc, queuePrefix: queuePrefix}
	s.available.Store(true)
	return s
}

// OnSend stores sc.Payload, clones the envelope with the payload replaced
// by the store key, attaches a hash when enabled, and pushes it onto
// <queuePrefix><route>.
func (s *Sender) OnSend(ctx context.Context, sc *envelope.ServiceCall, route string) error {
	if !s.IsAvailable() {
		return errors.ErrSenderUnavailable()
	}

	storeKey, err := s.memcache.StoreMessagePayload(ctx, sc.Payload)
	if err != nil {
		return err
	}

	clone := sc.Clone()
	le := clone.ToLightEnvelope(storeKey)

	if s.cfg.HashingEnabled {
		hash, err := s.createMessageHash(le)
		if err != nil {
			return err
		}
		le.Hash = hash
	}

	return s.memcache.SendMessage(ctx, le, s.queuePrefix+route)
}
