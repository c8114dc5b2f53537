// Package dispatcher wraps every outbound send in a bounded retry and
// records the trace events that let an operator see a message's state
// transitions: SENT, then DELIVERED or FAILED.
package dispatcher

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/datastructures/queue"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/exchange"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
	"github.com/chris-alexander-pop/ti-engine/pkg/msghandler"
	"github.com/chris-alexander-pop/ti-engine/pkg/resilience"
)

// MessageState is the lifecycle state a trace event records.
type MessageState string

const (
	StatePending   MessageState = "PENDING"
	StateProcessed MessageState = "PROCESSED"
)

// TraceEventKind is the transition a TraceEvent records for a send attempt.
type TraceEventKind string

const (
	EventSent      TraceEventKind = "SENT"
	EventDelivered TraceEventKind = "DELIVERED"
	EventFailed    TraceEventKind = "FAILED"
)

// TraceEvent is one entry in the dispatcher's bounded trace ring buffer.
type TraceEvent struct {
	MessageID string
	State     MessageState
	Kind      TraceEventKind
	At        time.Time
	Err       error
}

const defaultTraceBufferSize = 1000

// Dispatcher is constructed with an explicit *exchange.Exchange rather than
// reaching for a package-level singleton, so an instance hosting multiple
// exchanges (or a test) can wire up as many dispatchers as it needs.
type Dispatcher struct {
	exchange    *exchange.Exchange
	retryCfg    resilience.RetryConfig
	trace       *queue.Queue[TraceEvent]
	traceBuffer int
}

func New(ex *exchange.Exchange) *Dispatcher {
	return &Dispatcher{
		exchange: ex,
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         0.1,
		},
		trace:       queue.New[TraceEvent](),
		traceBuffer: defaultTraceBufferSize,
	}
}

// AddRequestObserver and AddResponseObserver forward to the underlying
// Exchange: the Dispatcher doesn't interpose on message delivery, only on
// the send path.
func (d *Dispatcher) AddRequestObserver(o msghandler.MessageObserver) {
	d.exchange.AddRequestObserver(o)
}

func (d *Dispatcher) AddResponseObserver(o msghandler.MessageObserver) {
	d.exchange.AddResponseObserver(o)
}

// SendRequest dispatches sc as a PENDING message and returns its MessageID.
func (d *Dispatcher) SendRequest(ctx context.Context, sc *envelope.ServiceCall) (string, error) {
	err := d.send(ctx, StatePending, sc.MessageID, func(ctx context.Context) error {
		return d.exchange.SendMessageRequest(ctx, sc)
	})
	return sc.MessageID, err
}

// SendResponse dispatches sc as a PROCESSED message.
func (d *Dispatcher) SendResponse(ctx context.Context, sc *envelope.ServiceCall) error {
	return d.send(ctx, StateProcessed, sc.MessageID, func(ctx context.Context) error {
		return d.exchange.SendMessageResponse(ctx, sc)
	})
}

func (d *Dispatcher) send(ctx context.Context, state MessageState, messageID string, op resilience.Executor) error {
	d.record(messageID, state, EventSent, nil)

	err := resilience.Retry(ctx, d.retryCfg, op)
	if err != nil {
		d.record(messageID, state, EventFailed, err)
		logger.L().ErrorContext(ctx, "dispatcher send failed after retries", "messageId", messageID, "state", state, "error", err)
		return err
	}

	d.record(messageID, state, EventDelivered, nil)
	return nil
}

func (d *Dispatcher) record(messageID string, state MessageState, kind TraceEventKind, err error) {
	if d.trace.Len() >= d.traceBuffer {
		d.trace.Dequeue()
	}
	d.trace.Enqueue(TraceEvent{MessageID: messageID, State: state, Kind: kind, At: time.Now(), Err: err})
}

// TraceEvents drains and returns every buffered trace event, oldest first.
func (d *Dispatcher) TraceEvents() []TraceEvent {
	events := make([]TraceEvent, 0, d.trace.Len())
	for {
		e, ok := d.trace.Dequeue()
		if !ok {
			break
		}
		events = append(events, e)
	}
	return events
}
