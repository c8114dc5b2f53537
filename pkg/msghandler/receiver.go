package msghandler

import (
	"context"
	"sync/atomic"

	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
	"github.com/chris-alexander-pop/ti-engine/pkg/memcache"
)

// Receiver owns a receive queue and runs a bounded, non-recursive loop:
// onReceive -> postReceive -> notify observers -> next iteration,
// regardless of any individual iteration's failure. The original design's
// recursive self-scheduling is expressed here as a plain for loop, since Go
// has no tail-call guarantee and an unbounded message stream would
// eventually blow the stack if it were actually recursive.
type Receiver struct {
	base
	memcache     *memcache.MemoryCache
	receiveQueue string

	isReceiving atomic.Bool
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewReceiver(identifier string, cfg HandlerConfig, mc *memcache.MemoryCache, receiveQueue string) *Receiver {
	r := &Receiver{base: newBase(identifier, cfg), memcache: mc, receiveQueue: receiveQueue}
	r.available.Store(true)
	return r
}

// Enable starts the receive loop in the background. Calling Enable while
// already receiving is a no-op.
func (r *Receiver) Enable(ctx context.Context) {
	if !r.isReceiving.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx)
}

// Disable stops the receive loop and blocks until the in-flight iteration,
// if any, returns.
func (r *Receiver) Disable() {
	if !r.isReceiving.CompareAndSwap(true, false) {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Receiver) loop(ctx context.Context) {
	defer close(r.done)
	for r.isReceiving.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sc, err := r.receiveOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Tampering is always fatal for the specific message — dropped,
			// not retried — and logged at error severity; every other
			// failure here is transient and only warrants a warning.
			if errors.CodeOf(err) == errors.CodeSecMessageTamperingDetected {
				logger.L().ErrorContext(ctx, "dropping tampered message", "queue", r.receiveQueue, "error", err)
			} else {
				logger.L().WarnContext(ctx, "receive iteration failed", "queue", r.receiveQueue, "error", err)
			}
			continue
		}
		if sc == nil {
			continue
		}
		r.notifyObservers(sc)
	}
}

// receiveOne implements onReceive followed by postReceive: block for the
// next envelope, rehydrate its payload, then verify the hash before the
// message is allowed anywhere near an observer.
func (r *Receiver) receiveOne(ctx context.Context) (*envelope.ServiceCall, error) {
	le, err := r.memcache.ReceiveMessage(ctx, r.receiveQueue)
	if err != nil {
		return nil, err
	}
	if le == nil {
		return nil, nil
	}

	payload, err := r.memcache.RetrieveMessagePayload(ctx, le)
	if err != nil {
		return nil, err
	}

	if r.cfg.HashingEnabled && !r.verifyMessageHash(le) {
		return nil, errors.ErrMessageTamperingDetected(le.MessageID)
	}

	return le.ToServiceCall(payload), nil
}
