package memcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
)

// fakeBroker is a minimal in-memory broker.Client covering the commands
// MemoryCache issues (SET/GET/DEL, LPUSH/BRPOP) and those SystemCache issues
// (HSET/HGET, SADD/SISMEMBER, JSON.SET/JSON.GET), enough to exercise the
// payload store, queue transport and system cache without a real Redis server.
type fakeBroker struct {
	mu            sync.Mutex
	kv            map[string]string
	lists         map[string][]string
	hashes        map[string]map[string]string
	sets          map[string]map[string]struct{}
	observer      []broker.ConnectionObserver
	jsonSupported bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		kv:     make(map[string]string),
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (f *fakeBroker) Initialize(ctx context.Context) error { return nil }

func (f *fakeBroker) ExecuteCommands(ctx context.Context, cmds ...broker.Command) ([]any, error) {
	return nil, nil
}

// BlockingCommand genuinely blocks until queue gets an entry or ctx is
// canceled, polling rather than returning immediately on an empty queue —
// a fake that returned right away on "empty" would never exercise the
// actual blocking contract ReceiveMessage depends on.
func (f *fakeBroker) BlockingCommand(ctx context.Context, cmd broker.Command) (any, error) {
	if cmd.Name != "BRPOP" {
		return nil, fmt.Errorf("unsupported blocking command %q", cmd.Name)
	}
	queue := cmd.Args[0].(string)

	for {
		f.mu.Lock()
		items := f.lists[queue]
		if len(items) > 0 {
			value := items[len(items)-1]
			f.lists[queue] = items[:len(items)-1]
			f.mu.Unlock()
			return []any{queue, value}, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *fakeBroker) PublishCommand(ctx context.Context, channel string, payload string) error {
	return nil
}

func (f *fakeBroker) SubscribeCommand(ctx context.Context, channel string) (broker.Subscription, error) {
	return nil, fmt.Errorf("not supported by fakeBroker")
}

func (f *fakeBroker) UnsubscribeCommand(ctx context.Context, channel string) error { return nil }

func (f *fakeBroker) CallCommand(ctx context.Context, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, _ := args[0].(string)
	switch name {
	case "SET":
		key := args[1].(string)
		value := args[2].(string)
		f.kv[key] = value
		return "OK", nil
	case "GET":
		key := args[1].(string)
		value, ok := f.kv[key]
		if !ok {
			return nil, nil
		}
		return value, nil
	case "DEL":
		key := args[1].(string)
		delete(f.kv, key)
		return int64(1), nil
	case "LPUSH":
		queue := args[1].(string)
		value := args[2].(string)
		f.lists[queue] = append([]string{value}, f.lists[queue]...)
		return int64(len(f.lists[queue])), nil
	case "HSET":
		key := args[1].(string)
		field := args[2].(string)
		value := args[3].(string)
		if f.hashes[key] == nil {
			f.hashes[key] = make(map[string]string)
		}
		f.hashes[key][field] = value
		return int64(1), nil
	case "HGET":
		key := args[1].(string)
		field := args[2].(string)
		value, ok := f.hashes[key][field]
		if !ok {
			return nil, nil
		}
		return value, nil
	case "SADD":
		key := args[1].(string)
		if f.sets[key] == nil {
			f.sets[key] = make(map[string]struct{})
		}
		added := int64(0)
		for _, m := range args[2:] {
			member := m.(string)
			if _, exists := f.sets[key][member]; !exists {
				f.sets[key][member] = struct{}{}
				added++
			}
		}
		return added, nil
	case "SISMEMBER":
		key := args[1].(string)
		member := args[2].(string)
		if _, ok := f.sets[key][member]; ok {
			return int64(1), nil
		}
		return int64(0), nil
	case "JSON.SET":
		key := args[1].(string)
		value := args[3].(string)
		f.kv[key] = value
		return "OK", nil
	case "JSON.GET":
		key := args[1].(string)
		value, ok := f.kv[key]
		if !ok {
			return nil, nil
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported command %q", name)
	}
}

func (f *fakeBroker) IsJSONSupported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jsonSupported
}

func (f *fakeBroker) AddConnectionObserver(o broker.ConnectionObserver) {
	f.observer = append(f.observer, o)
}

func (f *fakeBroker) ShutDown(timeout context.Context) error { return nil }

func (f *fakeBroker) Identifier() string { return "fake-conn" }
