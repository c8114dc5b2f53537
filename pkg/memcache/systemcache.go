package memcache

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
)

// SystemCache is the broader key/value/set/hash/JSON façade, independent of
// the messaging pipeline, gated by an isOperational flag that connection
// observer callbacks flip. Every operation fails fast with
// E_GEN_SYSTEM_CACHE_UNAVAILABLE while the underlying client is down rather
// than blocking or silently retrying.
type SystemCache struct {
	client      broker.Client
	operational atomic.Bool
}

func NewSystemCache(client broker.Client) *SystemCache {
	sc := &SystemCache{client: client}
	client.AddConnectionObserver(sc)
	return sc
}

func (sc *SystemCache) OnConnectionRecovered(identifier string) { sc.operational.Store(true) }
func (sc *SystemCache) OnConnectionDisrupted(identifier string) { sc.operational.Store(false) }
func (sc *SystemCache) OnConnectionLost(identifier string)      { sc.operational.Store(false) }

func (sc *SystemCache) requireOperational() error {
	if !sc.operational.Load() {
		return errors.ErrSystemCacheUnavailable()
	}
	return nil
}

func (sc *SystemCache) Get(ctx context.Context, key string, dest any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	res, err := sc.client.CallCommand(ctx, "GET", key)
	if err != nil {
		return errors.Wrap(err, "system cache GET failed")
	}
	if res == nil {
		return errors.NotFound("key '"+key+"' not found", nil)
	}
	raw, _ := asString(res)
	return json.Unmarshal([]byte(raw), dest)
}

func (sc *SystemCache) Set(ctx context.Context, key string, value any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal system cache value")
	}
	if _, err := sc.client.CallCommand(ctx, "SET", key, string(data)); err != nil {
		return errors.Wrap(err, "system cache SET failed")
	}
	return nil
}

func (sc *SystemCache) Delete(ctx context.Context, key string) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	_, err := sc.client.CallCommand(ctx, "DEL", key)
	return err
}

func (sc *SystemCache) SetHash(ctx context.Context, key, field string, value any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal hash field value")
	}
	_, err = sc.client.CallCommand(ctx, "HSET", key, field, string(data))
	return err
}

func (sc *SystemCache) GetHash(ctx context.Context, key, field string, dest any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	res, err := sc.client.CallCommand(ctx, "HGET", key, field)
	if err != nil {
		return errors.Wrap(err, "system cache HGET failed")
	}
	if res == nil {
		return errors.NotFound("field '"+field+"' not found in hash '"+key+"'", nil)
	}
	raw, _ := asString(res)
	return json.Unmarshal([]byte(raw), dest)
}

func (sc *SystemCache) AddToSet(ctx context.Context, key string, members ...string) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	args := make([]any, 0, len(members)+2)
	args = append(args, "SADD", key)
	for _, m := range members {
		args = append(args, m)
	}
	_, err := sc.client.CallCommand(ctx, args...)
	return err
}

func (sc *SystemCache) IsMember(ctx context.Context, key, member string) (bool, error) {
	if err := sc.requireOperational(); err != nil {
		return false, err
	}
	res, err := sc.client.CallCommand(ctx, "SISMEMBER", key, member)
	if err != nil {
		return false, errors.Wrap(err, "system cache SISMEMBER failed")
	}
	return toBool(res), nil
}

// SetJSON and GetJSON only function when the underlying client advertises
// ReJSON/ReJSON2 support (broker.Client.IsJSONSupported); otherwise they
// degrade to the plain string Get/Set path.
func (sc *SystemCache) SetJSON(ctx context.Context, key string, value any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	if !sc.client.IsJSONSupported() {
		return sc.Set(ctx, key, value)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON document")
	}
	_, err = sc.client.CallCommand(ctx, "JSON.SET", key, "$", string(data))
	return err
}

func (sc *SystemCache) GetJSON(ctx context.Context, key string, dest any) error {
	if err := sc.requireOperational(); err != nil {
		return err
	}
	if !sc.client.IsJSONSupported() {
		return sc.Get(ctx, key, dest)
	}
	res, err := sc.client.CallCommand(ctx, "JSON.GET", key)
	if err != nil {
		return errors.Wrap(err, "system cache JSON.GET failed")
	}
	if res == nil {
		return errors.NotFound("JSON document '"+key+"' not found", nil)
	}
	raw, _ := asString(res)
	return json.Unmarshal([]byte(raw), dest)
}

func toBool(v any) bool {
	switch t := v.(type) {
	case int64:
		return t == 1
	case string:
		return t == "1"
	default:
		return false
	}
}
