package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
)

// fakeBroker is a minimal in-memory broker.Client. failStores, when set,
// makes every SET command fail so dispatcher.send's retry path can be
// exercised deterministically.
type fakeBroker struct {
	mu         sync.Mutex
	kv         map[string]string
	lists      map[string][]string
	failStores bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{kv: make(map[string]string), lists: make(map[string][]string)}
}

func (f *fakeBroker) Initialize(ctx context.Context) error { return nil }

func (f *fakeBroker) ExecuteCommands(ctx context.Context, cmds ...broker.Command) ([]any, error) {
	return nil, nil
}

func (f *fakeBroker) BlockingCommand(ctx context.Context, cmd broker.Command) (any, error) {
	return nil, fmt.Errorf("not exercised by dispatcher tests")
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
		if f.failStores {
			return nil, errors.Internal("simulated store failure", nil)
		}
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
	default:
		return nil, fmt.Errorf("unsupported command %q", name)
	}
}

func (f *fakeBroker) IsJSONSupported() bool { return false }

func (f *fakeBroker) AddConnectionObserver(o broker.ConnectionObserver) {}

func (f *fakeBroker) ShutDown(timeout context.Context) error { return nil }

func (f *fakeBroker) Identifier() string { return "fake-conn" }
