// Package executor implements the Service Executor: the inbound-dispatch
// half of the messaging core. It owns the service interface — a registry of
// handlers keyed by alias and version — and turns each inbound ServiceCall
// into a populated response handed back to the Dispatcher.
package executor

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/ti-engine/pkg/concurrency"
	"github.com/chris-alexander-pop/ti-engine/pkg/dispatcher"
	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/chris-alexander-pop/ti-engine/pkg/logger"
)

// defaultHandlerConcurrency bounds how many inbound calls a ServiceExecutor
// runs at once. OnMessage hands work to the pool instead of running the
// handler inline, so slow handlers stall the Receiver's pull loop only once
// the pool's queue (four times this many calls) is full.
const defaultHandlerConcurrency = 32

// Handler is a registered service implementation. It receives the
// definition it was registered under, the call's params, and a reference to
// the owning ServiceExecutor so it can issue nested calls.
type Handler func(ctx context.Context, def envelope.ServiceDefinition, params envelope.ServiceParams, provider *ServiceExecutor) (any, error)

// AccessVerifier decides whether a call is allowed to reach its handler.
// The default verifier allows everything.
type AccessVerifier func(authToken string, address envelope.ServiceAddress) error

type versionedHandler struct {
	handler Handler
	def     envelope.ServiceDefinition
}

type aliasEntry struct {
	versions       map[string]versionedHandler
	defaultVersion string
}

// ServiceExecutor is constructed with its Dispatcher as an explicit
// dependency and registers itself as the Dispatcher's request observer.
type ServiceExecutor struct {
	dispatcher   *dispatcher.Dispatcher
	verifyAccess AccessVerifier
	mu           sync.RWMutex
	services     map[string]*aliasEntry
	pool         *concurrency.WorkerPool
}

func New(d *dispatcher.Dispatcher) *ServiceExecutor {
	e := &ServiceExecutor{
		dispatcher:   d,
		verifyAccess: func(string, envelope.ServiceAddress) error { return nil },
		services:     make(map[string]*aliasEntry),
		pool:         concurrency.NewWorkerPool(defaultHandlerConcurrency, defaultHandlerConcurrency*4),
	}
	e.pool.Start(context.Background())
	d.AddRequestObserver(e)
	return e
}

// SetAccessVerifier overrides the default allow-all access check.
func (e *ServiceExecutor) SetAccessVerifier(fn AccessVerifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verifyAccess = fn
}

// AddServiceHandler registers handler under def's alias and version. The
// most recently registered version for an alias becomes that alias's
// default, used when a caller doesn't pin a version.
func (e *ServiceExecutor) AddServiceHandler(def envelope.ServiceDefinition, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.services[def.ServiceAlias]
	if !ok {
		entry = &aliasEntry{versions: make(map[string]versionedHandler)}
		e.services[def.ServiceAlias] = entry
	}
	entry.versions[def.ServiceVersion] = versionedHandler{handler: handler, def: def}
	entry.defaultVersion = def.ServiceVersion
}

// OnMessage is the Dispatcher request observer callback: every inbound
// ServiceCall arrives here for resolution and execution. The call is handed
// to the worker pool rather than run inline, so handler execution does not
// block the Receiver that's feeding this callback; Submit blocks only while
// the pool's queue is full.
func (e *ServiceExecutor) OnMessage(sc *envelope.ServiceCall) {
	e.pool.Submit(func(ctx context.Context) {
		e.handleRequest(ctx, sc)
	})
}

// Stop drains in-flight handler work and stops the executor's worker pool.
func (e *ServiceExecutor) Stop() {
	e.pool.Stop()
}

func (e *ServiceExecutor) handleRequest(ctx context.Context, sc *envelope.ServiceCall) {
	resp := sc.Clone()

	isSuccessful := true
	var exception *string
	var payload any

	if err := e.checkAccess(sc.AuthToken, sc.ServiceAddress); err != nil {
		isSuccessful = false
		exception = codePtr(errors.CodeOf(err))
	} else if handler, def, err := e.resolve(sc.ServiceAddress); err != nil {
		isSuccessful = false
		exception = codePtr(errors.CodeOf(err))
	} else if result, err := handler(ctx, def, sc.ServiceParams, e); err != nil {
		isSuccessful = false
		exception = codePtr(errors.CodeOf(err))
	} else {
		payload = result
	}

	resp.IsCompleted = true
	resp.IsSuccessful = &isSuccessful
	resp.Exception = exception
	resp.Payload = payload

	if err := e.dispatcher.SendResponse(ctx, resp); err != nil {
		logger.L().Error("failed to send service call response", "messageId", resp.MessageID, "error", err)
	}
}

func (e *ServiceExecutor) checkAccess(authToken string, address envelope.ServiceAddress) error {
	e.mu.RLock()
	verify := e.verifyAccess
	e.mu.RUnlock()
	if err := verify(authToken, address); err != nil {
		return errors.ErrUnauthorizedAccess(address.ServiceAlias)
	}
	return nil
}

func (e *ServiceExecutor) resolve(address envelope.ServiceAddress) (Handler, envelope.ServiceDefinition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.services[address.ServiceAlias]
	if !ok {
		return nil, envelope.ServiceDefinition{}, errors.ErrServiceNotFound(address.ServiceAlias)
	}

	version := address.ServiceVersion
	if version == "" {
		version = entry.defaultVersion
	}
	vh, ok := entry.versions[version]
	if !ok {
		return nil, envelope.ServiceDefinition{}, errors.ErrServiceHandlerNotFound(address.ServiceAlias, version)
	}
	return vh.handler, vh.def, nil
}

func codePtr(code string) *string { return &code }
