package envelope

import (
	"testing"

	tierrors "github.com/chris-alexander-pop/ti-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLightEnvelopeRoundTripsThroughToServiceCall(t *testing.T) {
	sc := NewChainedCall(
		ServiceExecContext{AuthToken: "tok"},
		Endpoint{InstanceID: "caller-1", Route: "orders"},
		Endpoint{Route: "billing"},
		ServiceAddress{ServiceDomainName: "billing", ServiceAlias: "charge", ServiceVersion: "1.0.0"},
		ServiceParams{"amount": 100},
	)
	sc.Payload = map[string]any{"amount": float64(100)}

	le := sc.ToLightEnvelope("payload:abc123")
	assert.Equal(t, "payload:abc123", le.PayloadKey)
	assert.Equal(t, sc.MessageID, le.MessageID)
	assert.Equal(t, sc.ServiceAddress.ServiceAlias, le.ServiceAddress.ServiceAlias)

	restored := le.ToServiceCall(map[string]any{"amount": float64(100)})
	assert.Equal(t, sc.MessageID, restored.MessageID)
	assert.Equal(t, sc.ChainID, restored.ChainID)
	assert.Equal(t, sc.ServiceAddress, restored.ServiceAddress)
	assert.Equal(t, sc.Payload, restored.Payload)
}

func TestCanonicalizeIgnoresTheHashField(t *testing.T) {
	le := &LightEnvelope{MessageID: "m1", Hash: "stale-hash"}

	a, err := Canonicalize(le)
	require.NoError(t, err)

	le.Hash = "different-stale-hash"
	b, err := Canonicalize(le)
	require.NoError(t, err)

	assert.Equal(t, a, b, "Hash must never influence its own canonical encoding")
}

func TestHasCycleDetectsSelfReferencingMap(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	assert.True(t, HasCycle(m))
}

func TestHasCycleDetectsSelfReferencingSlice(t *testing.T) {
	s := make([]any, 1)
	s[0] = s
	assert.True(t, HasCycle(s))
}

func TestHasCycleAllowsSharedButAcyclicReferences(t *testing.T) {
	shared := map[string]any{"x": 1}
	payload := map[string]any{"a": shared, "b": shared}
	assert.False(t, HasCycle(payload))
}

func TestHasCycleAllowsPlainValues(t *testing.T) {
	assert.False(t, HasCycle(nil))
	assert.False(t, HasCycle(42))
	assert.False(t, HasCycle("hello"))
	assert.False(t, HasCycle(map[string]any{"a": []any{1, 2, 3}}))
}

func TestErrCyclicPayloadIsReturnedAsAppError(t *testing.T) {
	err := ErrCyclicPayload()
	require.Error(t, err)
	assert.True(t, tierrors.Is(err, tierrors.CodeInvalidArgument))
	assert.Contains(t, err.Error(), "cycle")
}
