package envelope

import (
	"encoding/json"
	"reflect"
	"time"

	tierrors "github.com/chris-alexander-pop/ti-engine/pkg/errors"
)

// LightEnvelope is the transport shape of a Message: Payload has been
// replaced by the payload-store key it was written under. Everything else
// about the original message is preserved verbatim.
type LightEnvelope struct {
	MessageID     string     `json:"messageId"`
	ChainID       string     `json:"chainId"`
	ChainLevel    int        `json:"chainLevel"`
	Predecessor   string     `json:"predecessor,omitempty"`
	Source        Endpoint   `json:"source"`
	Destination   Endpoint   `json:"destination"`
	CreatedOn     any        `json:"createdOn"`
	FinishedOn    any        `json:"finishedOn,omitempty"`
	ExecutionTime int64      `json:"executionTime,omitempty"`
	PayloadKey    string     `json:"payload"`
	Hash          string     `json:"hash,omitempty"`

	// ServiceCall-only fields, carried through verbatim so a ServiceCall can
	// round-trip through LightEnvelope without a second schema.
	AuthToken      string          `json:"authToken,omitempty"`
	ServiceAddress *ServiceAddress `json:"serviceAddress,omitempty"`
	ServiceParams  ServiceParams   `json:"serviceParams,omitempty"`
	IsCompleted    bool            `json:"isCompleted,omitempty"`
	IsSuccessful   *bool           `json:"isSuccessful,omitempty"`
	Exception      *string         `json:"exception,omitempty"`
	Successors     []string        `json:"successors,omitempty"`
}

// ToLightEnvelope replaces sc.Payload with storeKey, producing the shape
// that is actually pushed onto a broker queue. The original ServiceCall is
// left untouched; callers pass a clone if they still need the live payload.
func (sc *ServiceCall) ToLightEnvelope(storeKey string) *LightEnvelope {
	le := &LightEnvelope{
		MessageID:     sc.MessageID,
		ChainID:       sc.ChainID,
		ChainLevel:    sc.ChainLevel,
		Predecessor:   sc.Predecessor,
		Source:        sc.Source,
		Destination:   sc.Destination,
		CreatedOn:     sc.CreatedOn,
		ExecutionTime: sc.ExecutionTime,
		PayloadKey:    storeKey,
		AuthToken:     sc.AuthToken,
		ServiceAddress: &ServiceAddress{
			ServiceDomainName: sc.ServiceAddress.ServiceDomainName,
			ServiceAlias:      sc.ServiceAddress.ServiceAlias,
			ServiceVersion:    sc.ServiceAddress.ServiceVersion,
		},
		ServiceParams: sc.ServiceParams,
		IsCompleted:   sc.IsCompleted,
		IsSuccessful:  sc.IsSuccessful,
		Exception:     sc.Exception,
		Successors:    sc.Successors,
	}
	if sc.FinishedOn != nil {
		le.FinishedOn = *sc.FinishedOn
	}
	return le
}

// ToServiceCall rehydrates a ServiceCall from a LightEnvelope, substituting
// payload back in for the store key.
func (le *LightEnvelope) ToServiceCall(payload any) *ServiceCall {
	sc := &ServiceCall{
		Message: Message{
			MessageID:     le.MessageID,
			ChainID:       le.ChainID,
			ChainLevel:    le.ChainLevel,
			Predecessor:   le.Predecessor,
			Source:        le.Source,
			Destination:   le.Destination,
			ExecutionTime: le.ExecutionTime,
			Payload:       payload,
			Hash:          le.Hash,
		},
		AuthToken:     le.AuthToken,
		ServiceParams: le.ServiceParams,
		IsCompleted:   le.IsCompleted,
		IsSuccessful:  le.IsSuccessful,
		Exception:     le.Exception,
		Successors:    le.Successors,
	}
	if le.ServiceAddress != nil {
		sc.ServiceAddress = *le.ServiceAddress
	}
	parseTime := func(v any) (time.Time, bool) {
		if s, ok := v.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			return t, err == nil
		}
		t, ok := v.(time.Time)
		return t, ok
	}
	if t, ok := parseTime(le.CreatedOn); ok {
		sc.CreatedOn = t
	}
	if t, ok := parseTime(le.FinishedOn); ok {
		sc.FinishedOn = &t
	}
	return sc
}

// Canonicalize produces a deterministic byte encoding of v suitable for
// hashing: encoding/json already sorts map keys, and LightEnvelope's field
// order is fixed by its Go struct definition, so a plain Marshal is already
// canonical as long as the Hash field has been cleared first.
func Canonicalize(le *LightEnvelope) ([]byte, error) {
	withoutHash := *le
	withoutHash.Hash = ""
	return json.Marshal(withoutHash)
}

// HasCycle reports whether v (typically a ServiceCall's Payload before it is
// stored) contains a reference cycle. The module rejects cyclic payloads
// outright rather than decycling them (see Design Notes): ti-engine's
// original JS decycle/retrocycle pair is replaced by a hard boundary check.
func HasCycle(v any) bool {
	return hasCycle(reflect.ValueOf(v), map[uintptr]bool{})
}

func hasCycle(v reflect.Value, seen map[uintptr]bool) bool {
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return false
		}
		return hasCycle(v.Elem(), seen)
	case reflect.Ptr:
		if v.IsNil() {
			return false
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return true
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		return hasCycle(v.Elem(), seen)
	case reflect.Map:
		if v.IsNil() {
			return false
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return true
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		iter := v.MapRange()
		for iter.Next() {
			if hasCycle(iter.Value(), seen) {
				return true
			}
		}
		return false
	case reflect.Slice:
		if v.IsNil() {
			return false
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return true
		}
		seen[ptr] = true
		defer delete(seen, ptr)
		for i := 0; i < v.Len(); i++ {
			if hasCycle(v.Index(i), seen) {
				return true
			}
		}
		return false
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if hasCycle(v.Index(i), seen) {
				return true
			}
		}
		return false
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			if hasCycle(v.Field(i), seen) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ErrCyclicPayload is returned by StoreMessagePayload when HasCycle detects
// a reference cycle in the payload.
func ErrCyclicPayload() error {
	return tierrors.Invalid("payload contains a reference cycle and cannot be transported", nil)
}
