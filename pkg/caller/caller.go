// Package caller implements the Service Caller: the outbound-correlation
// half of the messaging core. It issues calls through the Dispatcher,
// tracks them in a pending-call table keyed by messageID, and resolves each
// call exactly once — on the matching response or on timeout, whichever
// comes first.
package caller

import (
	"context"
	"sync"
	"time"

	"github.com/chris-alexander-pop/ti-engine/pkg/dispatcher"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
	"github.com/chris-alexander-pop/ti-engine/pkg/registry"
)

type pendingCall struct {
	resultCh chan envelope.ServiceCallResult
}

// ServiceCaller is constructed with its Dispatcher and registry.Gate as
// explicit dependencies, not process-wide singletons, so an instance can
// run more than one caller against different exchanges if it needs to.
type ServiceCaller struct {
	dispatcher  *dispatcher.Dispatcher
	gate        *registry.Gate
	execTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
}

func New(d *dispatcher.Dispatcher, gate *registry.Gate, execTimeout time.Duration) *ServiceCaller {
	c := &ServiceCaller{
		dispatcher:  d,
		gate:        gate,
		execTimeout: execTimeout,
		pending:     make(map[string]*pendingCall),
	}
	d.AddResponseObserver(c)
	return c
}

// ExecuteServiceCall issues a call and blocks until the matching response
// arrives or the call times out. It never returns a Go error: every failure
// mode — unregistered service, send failure, timeout — comes back as a
// ServiceCallResult, per the exceptions-as-values design.
func (c *ServiceCaller) ExecuteServiceCall(ctx context.Context, execCtx envelope.ServiceExecContext, source, destination envelope.Endpoint, address envelope.ServiceAddress, params envelope.ServiceParams) envelope.ServiceCallResult {
	sc := envelope.NewChainedCall(execCtx, source, destination, address, params)

	if err := c.gate.Verify(ctx, address.ServiceDomainName, address.ServiceAlias); err != nil {
		return envelope.ServiceCallResult{IsSuccessful: false, Exception: errors.CodeOf(err)}
	}

	pc := &pendingCall{resultCh: make(chan envelope.ServiceCallResult, 1)}
	c.mu.Lock()
	c.pending[sc.MessageID] = pc
	c.mu.Unlock()

	if _, err := c.dispatcher.SendRequest(ctx, sc); err != nil {
		c.mu.Lock()
		delete(c.pending, sc.MessageID)
		c.mu.Unlock()
		return envelope.ServiceCallResult{IsSuccessful: false, Exception: errors.CodeOf(err)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.execTimeout)
	defer cancel()

	select {
	case result := <-pc.resultCh:
		return result
	case <-timeoutCtx.Done():
		return c.resolveTimeout(sc.MessageID, pc)
	}
}

// resolveTimeout implements the "first of response-arrives or timeout-fires
// wins" rule: deleting the map entry is the single atomic decision point.
// Whichever goroutine performs the delete is the winner; the loser reads
// the (buffered, so non-blocking) result the winner already produced.
func (c *ServiceCaller) resolveTimeout(messageID string, pc *pendingCall) envelope.ServiceCallResult {
	c.mu.Lock()
	_, stillPending := c.pending[messageID]
	delete(c.pending, messageID)
	c.mu.Unlock()

	if stillPending {
		return envelope.ServiceCallResult{IsSuccessful: false, Exception: errors.CodeComServiceExecTimeout}
	}
	return <-pc.resultCh
}

// OnMessage is the Dispatcher response observer callback: when the
// responses-in receiver delivers a message whose messageID matches a
// pending entry, mark it complete and wake the waiter.
func (c *ServiceCaller) OnMessage(sc *envelope.ServiceCall) {
	c.mu.Lock()
	pc, ok := c.pending[sc.MessageID]
	if ok {
		delete(c.pending, sc.MessageID)
	}
	c.mu.Unlock()

	if !ok {
		logger.L().Debug("response received for unknown or already-resolved call", "messageId", sc.MessageID)
		return
	}

	now := time.Now()
	sc.IsCompleted = true
	sc.MarkFinished(now)

	isSuccessful := true
	if sc.IsSuccessful != nil {
		isSuccessful = *sc.IsSuccessful
	}
	exception := ""
	if sc.Exception != nil {
		exception = *sc.Exception
	}

	pc.resultCh <- envelope.ServiceCallResult{IsSuccessful: isSuccessful, Exception: exception, Payload: sc.Payload}
}
