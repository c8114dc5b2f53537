// Package msghandler implements the Sender and Receiver message handlers:
// the transport step that replaces a payload with a store key before
// pushing onto a queue, and the receive loop that rehydrates and verifies
// an incoming envelope before handing it to observers.
package msghandler

import (
	"sync"
	"sync/atomic"

	"github.com/chris-alexander-pop/ti-engine/pkg/broker"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
)

// MessageObserver is notified once per successfully received and verified
// message. An observer that also needs connection lifecycle events
// implements broker.ConnectionObserver separately — base fans those out too
// when it detects the capability, rather than folding them into this
// interface.
type MessageObserver interface {
	OnMessage(sc *envelope.ServiceCall)
}

// HandlerConfig controls the optional hashing step shared by Sender and
// Receiver.
type HandlerConfig struct {
	HashingEnabled bool   `env:"MESSAGE_EXCHANGE_SECURITY_HASH_ENABLED" env-default:"true"`
	HashSecret     string `env:"MESSAGE_EXCHANGE_SECURITY_HASH_KEY"`
}

// base is embedded by Sender and Receiver; it is not exported because
// neither Sender nor Receiver is meant to be used as a base by anything
// outside this package.
type base struct {
	identifier string
	cfg        HandlerConfig
	available  atomic.Bool

	mu        sync.RWMutex
	observers []MessageObserver
}

func newBase(identifier string, cfg HandlerConfig) base {
	return base{identifier: identifier, cfg: cfg}
}

// IsAvailable reports whether the underlying connection is currently up.
func (b *base) IsAvailable() bool { return b.available.Load() }

// ConnectionIdentifier is the opaque identifier of the broker connection
// this handler is bound to.
func (b *base) ConnectionIdentifier() string { return b.identifier }

// AddMessageObserver registers o for message fan-out. If o also implements
// broker.ConnectionObserver, it additionally receives this handler's own
// connection-lifecycle callbacks.
func (b *base) AddMessageObserver(o MessageObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

func (b *base) notifyObservers(sc *envelope.ServiceCall) {
	b.mu.RLock()
	observers := append([]MessageObserver(nil), b.observers...)
	b.mu.RUnlock()
	for _, o := range observers {
		o.OnMessage(sc)
	}
}

// OnConnectionRecovered and OnConnectionDisrupted make base satisfy
// broker.ConnectionObserver. They flip isAvailable only for the connection
// this handler is actually bound to, so a multi-connection instance's
// handlers don't cross-talk, then propagate to any observer that itself
// wants connection events.
func (b *base) OnConnectionRecovered(identifier string) {
	if identifier != b.identifier {
		return
	}
	b.available.Store(true)
	b.propagateConnectionEvent(func(co broker.ConnectionObserver) { co.OnConnectionRecovered(identifier) })
}

func (b *base) OnConnectionDisrupted(identifier string) {
	if identifier != b.identifier {
		return
	}
	b.available.Store(false)
	b.propagateConnectionEvent(func(co broker.ConnectionObserver) { co.OnConnectionDisrupted(identifier) })
}

func (b *base) OnConnectionLost(identifier string) {
	if identifier != b.identifier {
		return
	}
	b.available.Store(false)
	b.propagateConnectionEvent(func(co broker.ConnectionObserver) { co.OnConnectionLost(identifier) })
}

func (b *base) propagateConnectionEvent(fn func(broker.ConnectionObserver)) {
	b.mu.RLock()
	observers := append([]MessageObserver(nil), b.observers...)
	b.mu.RUnlock()
	for _, o := range observers {
		if co, ok := o.(broker.ConnectionObserver); ok {
			fn(co)
		}
	}
}
