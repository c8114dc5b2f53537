// Package exchange composes the Sender/Receiver pairs that make up the
// Message Exchange: an inbound direction (requests arrive, responses leave)
// and an outbound direction (requests leave, responses arrive).
package exchange

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/memcache"
	"github.com/chris-alexander-pop/ti-engine/pkg/msghandler"
)

const (
	pendingQueueSegment   = "pending:"
	processedQueueSegment = "processed:"
)

// Config configures the queue naming prefix shared by both directions.
type Config struct {
	QueuePrefix string `env:"MESSAGE_EXCHANGE_QUEUE_PREFIX"`
}

// Exchange is the composition described in the Message Exchange component:
// an inbound (pending:<ownDomain> receiver, processed sender) pair for
// acting as a service provider, and an outbound (processed:<ownDomain>:
// <ownInstanceID> receiver, pending sender) pair for acting as a caller.
type Exchange struct {
	ownDomain     string
	ownInstanceID string

	inboundReceiver  *msghandler.Receiver
	inboundSender    *msghandler.Sender
	outboundReceiver *msghandler.Receiver
	outboundSender   *msghandler.Sender

	mu                sync.RWMutex
	requestObservers  []msghandler.MessageObserver
	responseObservers []msghandler.MessageObserver
}

// New builds an Exchange. connectionIdentifier must match the broker
// connection the Memory Cache's client is bound to, so the handlers'
// isAvailable tracking lines up with the right connection-lifecycle events.
func New(connectionIdentifier, ownDomain, ownInstanceID string, mc *memcache.MemoryCache, exchangeCfg Config, handlerCfg msghandler.HandlerConfig) *Exchange {
	pendingPrefix := exchangeCfg.QueuePrefix + pendingQueueSegment
	processedPrefix := exchangeCfg.QueuePrefix + processedQueueSegment

	return &Exchange{
		ownDomain:        ownDomain,
		ownInstanceID:    ownInstanceID,
		inboundReceiver:  msghandler.NewReceiver(connectionIdentifier, handlerCfg, mc, pendingPrefix+ownDomain),
		inboundSender:    msghandler.NewSender(connectionIdentifier, handlerCfg, mc, processedPrefix),
		outboundReceiver: msghandler.NewReceiver(connectionIdentifier, handlerCfg, mc, processedPrefix+ownDomain+":"+ownInstanceID),
		outboundSender:   msghandler.NewSender(connectionIdentifier, handlerCfg, mc, pendingPrefix),
	}
}

// AddRequestObserver registers o to be notified of every inbound request
// (the Service Executor's role).
func (e *Exchange) AddRequestObserver(o msghandler.MessageObserver) {
	e.mu.Lock()
	e.requestObservers = append(e.requestObservers, o)
	e.mu.Unlock()
}

// AddResponseObserver registers o to be notified of every inbound response
// (the Service Caller's role).
func (e *Exchange) AddResponseObserver(o msghandler.MessageObserver) {
	e.mu.Lock()
	e.responseObservers = append(e.responseObservers, o)
	e.mu.Unlock()
}

type observerFunc func(*envelope.ServiceCall)

func (f observerFunc) OnMessage(sc *envelope.ServiceCall) { f(sc) }

// EnableMessaging enables the requested directions in parallel, per the
// component's plain-goroutine wiring: the Exchange's startup fan-out is a
// one-shot, bounded operation, not a stream, so it doesn't reach for the
// pipeline combinators pkg/concurrency offers for long-lived channel work.
func (e *Exchange) EnableMessaging(ctx context.Context, configureInbound, configureOutbound bool) {
	var wg sync.WaitGroup

	if configureInbound {
		e.inboundReceiver.AddMessageObserver(observerFunc(e.notifyRequestObservers))
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.inboundReceiver.Enable(ctx)
		}()
	}
	if configureOutbound {
		e.outboundReceiver.AddMessageObserver(observerFunc(e.notifyResponseObservers))
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.outboundReceiver.Enable(ctx)
		}()
	}

	wg.Wait()
}

// DisableMessaging disables both directions in parallel.
func (e *Exchange) DisableMessaging() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.inboundReceiver.Disable() }()
	go func() { defer wg.Done(); e.outboundReceiver.Disable() }()
	wg.Wait()
}

func (e *Exchange) notifyRequestObservers(sc *envelope.ServiceCall) {
	e.mu.RLock()
	observers := append([]msghandler.MessageObserver(nil), e.requestObservers...)
	e.mu.RUnlock()
	for _, o := range observers {
		o.OnMessage(sc)
	}
}

func (e *Exchange) notifyResponseObservers(sc *envelope.ServiceCall) {
	e.mu.RLock()
	observers := append([]msghandler.MessageObserver(nil), e.responseObservers...)
	e.mu.RUnlock()
	for _, o := range observers {
		o.OnMessage(sc)
	}
}

// SendMessageRequest routes sc to pending:<destination.route>, the queue
// the provider's inbound receiver is listening on.
func (e *Exchange) SendMessageRequest(ctx context.Context, sc *envelope.ServiceCall) error {
	return e.outboundSender.OnSend(ctx, sc, sc.Destination.Route)
}

// SendMessageResponse routes sc to processed:<source.route>:<source.
// instanceID>, so it returns to the exact process that issued the request.
func (e *Exchange) SendMessageResponse(ctx context.Context, sc *envelope.ServiceCall) error {
	return e.inboundSender.OnSend(ctx, sc, sc.Source.Route+":"+sc.Source.InstanceID)
}
