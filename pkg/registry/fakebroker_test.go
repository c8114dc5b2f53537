package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
)

// fakeBroker is a minimal in-memory broker.Client backing set membership
// (SADD/SISMEMBER) for the registry's wire-level calls.
type fakeBroker struct {
	mu    sync.Mutex
	sets  map[string]map[string]struct{}
	calls int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{sets: make(map[string]map[string]struct{})}
}

func (f *fakeBroker) Initialize(ctx context.Context) error { return nil }

func (f *fakeBroker) ExecuteCommands(ctx context.Context, cmds ...broker.Command) ([]any, error) {
	return nil, nil
}

func (f *fakeBroker) BlockingCommand(ctx context.Context, cmd broker.Command) (any, error) {
	return nil, fmt.Errorf("not exercised by registry tests")
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
	f.calls++

	name, _ := args[0].(string)
	switch name {
	case "SADD":
		key := args[1].(string)
		member := args[2].(string)
		if f.sets[key] == nil {
			f.sets[key] = make(map[string]struct{})
		}
		f.sets[key][member] = struct{}{}
		return int64(1), nil
	case "SISMEMBER":
		key := args[1].(string)
		member := args[2].(string)
		if _, ok := f.sets[key][member]; ok {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported command %q", name)
	}
}

func (f *fakeBroker) IsJSONSupported() bool { return false }

func (f *fakeBroker) AddConnectionObserver(o broker.ConnectionObserver) {}

func (f *fakeBroker) ShutDown(timeout context.Context) error { return nil }

func (f *fakeBroker) Identifier() string { return "fake-conn" }
