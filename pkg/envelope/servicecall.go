package envelope

// ServiceAddress names the destination of a service call: a domain, an
// alias within that domain, and an optional version (falls back to the
// handler's default version when empty).
type ServiceAddress struct {
	ServiceDomainName string `json:"serviceDomainName"`
	ServiceAlias      string `json:"serviceAlias"`
	ServiceVersion    string `json:"serviceVersion,omitempty"`
}

// ServiceParams carries the named parameters passed to a handler.
type ServiceParams map[string]any

// ServiceCall specializes Message with the request/response fields needed to
// invoke a registered service handler and carry its result back.
type ServiceCall struct {
	Message

	AuthToken      string         `json:"authToken,omitempty"`
	ServiceAddress ServiceAddress `json:"serviceAddress"`
	ServiceParams  ServiceParams  `json:"serviceParams,omitempty"`

	IsCompleted  bool    `json:"isCompleted"`
	IsSuccessful *bool   `json:"isSuccessful,omitempty"`
	Exception    *string `json:"exception,omitempty"`

	Successors []string `json:"successors,omitempty"`
}

// ServiceExecContext is supplied by the caller to derive chain fields and
// propagate the auth token. When PreviousServiceCall is nil a new chain is
// started at level 0; otherwise the new call descends from it.
type ServiceExecContext struct {
	AuthToken           string
	PreviousServiceCall *ServiceCall
}

// NewChainedCall builds the identity portion of a ServiceCall: chain
// propagation always happens through ServiceExecContext, never implicitly.
func NewChainedCall(ctx ServiceExecContext, source, destination Endpoint, address ServiceAddress, params ServiceParams) *ServiceCall {
	sc := &ServiceCall{
		Message: Message{
			MessageID:   NewMessageID(),
			Source:      source,
			Destination: destination,
		},
		AuthToken:      ctx.AuthToken,
		ServiceAddress: address,
		ServiceParams:  params,
	}
	if ctx.PreviousServiceCall != nil {
		sc.ContinueChain(&ctx.PreviousServiceCall.Message)
	} else {
		sc.StartChain()
	}
	return sc
}

// Clone returns a shallow copy of sc, used by the Sender to detach the
// envelope it is about to mutate (payload -> store key) from the caller's
// copy.
func (sc *ServiceCall) Clone() *ServiceCall {
	clone := *sc
	return &clone
}

// ServiceDefinition describes a registered handler: its alias, an optional
// version (multiple versions may coexist per alias), the source file that
// declared it (diagnostic only), and whether auth is required.
type ServiceDefinition struct {
	ServiceAlias   string
	ServiceVersion string
	ServiceFile    string
	AuthRequired   bool
}

// ServiceCallResult is what executing a service call resolves to, at the
// caller's public API boundary. It never carries a Go error — exceptions are
// values, per the Design Note on exceptions-for-control-flow.
type ServiceCallResult struct {
	IsSuccessful bool
	Exception    string
	Payload      any
}
