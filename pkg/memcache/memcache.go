// Package memcache implements the Memory Cache façade the messaging
// pipeline sends and receives through: payload-store indirection and the
// list-based queue operations Senders and Receivers use.
package memcache

import (
	"context"
	"encoding/json"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/google/uuid"
)

// MemoryCache is the façade over a broker.Client used by the messaging
// pipeline. It owns no state of its own beyond configuration: every
// operation is a direct translation to one or more broker commands.
type MemoryCache struct {
	client broker.Client
	cfg    Config
}

func New(client broker.Client, cfg Config) *MemoryCache {
	if cfg.StoreTTL <= 0 {
		cfg.StoreTTL = DefaultConfig().StoreTTL
	}
	return &MemoryCache{client: client, cfg: cfg}
}

func (m *MemoryCache) Initialize(ctx context.Context) error {
	return m.client.Initialize(ctx)
}

func (m *MemoryCache) ShutDown(ctx context.Context) error {
	return m.client.ShutDown(ctx)
}

// StoreMessagePayload writes payload under a generated key with the
// configured TTL and returns the key.
func (m *MemoryCache) StoreMessagePayload(ctx context.Context, payload any) (string, error) {
	if envelope.HasCycle(payload) {
		return "", envelope.ErrCyclicPayload()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal message payload")
	}

	key := m.cfg.StoreKeyPrefix + uuid.NewString()
	ttlMs := m.cfg.StoreTTL.Milliseconds()
	if _, err := m.client.CallCommand(ctx, "SET", key, string(data), "PX", ttlMs); err != nil {
		return "", errors.Wrap(err, "failed to store message payload")
	}
	return key, nil
}

// RetrieveMessagePayload loads the payload stored under le.PayloadKey,
// deletes the store entry, and returns the decoded payload.
func (m *MemoryCache) RetrieveMessagePayload(ctx context.Context, le *envelope.LightEnvelope) (any, error) {
	res, err := m.client.CallCommand(ctx, "GET", le.PayloadKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve message payload")
	}
	if res == nil {
		return nil, errors.NotFound("payload store entry '"+le.PayloadKey+"' not found or expired", nil)
	}

	raw, ok := asString(res)
	if !ok {
		return nil, errors.Internal("unexpected payload store value type", nil)
	}

	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message payload")
	}

	if _, err := m.client.CallCommand(ctx, "DEL", le.PayloadKey); err != nil {
		return nil, errors.Wrap(err, "failed to delete consumed payload store entry")
	}

	return payload, nil
}

// SendMessage pushes the envelope onto the head of the named list.
func (m *MemoryCache) SendMessage(ctx context.Context, le *envelope.LightEnvelope, queueName string) error {
	data, err := json.Marshal(le)
	if err != nil {
		return errors.Wrap(err, "failed to marshal light envelope")
	}
	if _, err := m.client.CallCommand(ctx, "LPUSH", queueName, string(data)); err != nil {
		return errors.Wrap(err, "failed to push message onto queue")
	}
	return nil
}

// ReceiveMessage blocks on a pop from the tail of the named list, returning
// when a message is available or ctx is canceled (typically because the
// client is being torn down).
func (m *MemoryCache) ReceiveMessage(ctx context.Context, queueName string) (*envelope.LightEnvelope, error) {
	res, err := m.client.BlockingCommand(ctx, broker.NewCommand("BRPOP", queueName, 0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to receive message")
	}
	if res == nil {
		return nil, nil
	}

	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return nil, errors.Internal("unexpected BRPOP reply shape", nil)
	}
	raw, ok := asString(pair[1])
	if !ok {
		return nil, errors.Internal("unexpected BRPOP payload type", nil)
	}

	var le envelope.LightEnvelope
	if err := json.Unmarshal([]byte(raw), &le); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal received envelope")
	}
	return &le, nil
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
