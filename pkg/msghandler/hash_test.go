package msghandler

import (
	"testing"

	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessageHashIsDeterministic(t *testing.T) {
	b := newBase("conn-1", HandlerConfig{HashSecret: "s3cret"})
	le := &envelope.LightEnvelope{MessageID: "m1", PayloadKey: "payload:m1"}

	h1, err := b.createMessageHash(le)
	require.NoError(t, err)
	h2, err := b.createMessageHash(le)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestCreateMessageHashIgnoresExistingHashField(t *testing.T) {
	b := newBase("conn-1", HandlerConfig{HashSecret: "s3cret"})
	le := &envelope.LightEnvelope{MessageID: "m1", PayloadKey: "payload:m1"}

	withoutHash, err := b.createMessageHash(le)
	require.NoError(t, err)

	le.Hash = "whatever-was-there-before"
	withStaleHash, err := b.createMessageHash(le)
	require.NoError(t, err)

	assert.Equal(t, withoutHash, withStaleHash)
}

func TestVerifyMessageHashRoundTrips(t *testing.T) {
	b := newBase("conn-1", HandlerConfig{HashSecret: "s3cret"})
	le := &envelope.LightEnvelope{MessageID: "m1", PayloadKey: "payload:m1"}

	hash, err := b.createMessageHash(le)
	require.NoError(t, err)
	le.Hash = hash

	assert.True(t, b.verifyMessageHash(le))
}

func TestVerifyMessageHashRejectsTamperedEnvelope(t *testing.T) {
	b := newBase("conn-1", HandlerConfig{HashSecret: "s3cret"})
	le := &envelope.LightEnvelope{MessageID: "m1", PayloadKey: "payload:m1"}

	hash, err := b.createMessageHash(le)
	require.NoError(t, err)
	le.Hash = hash

	le.PayloadKey = "payload:different-key"
	assert.False(t, b.verifyMessageHash(le))
}

func TestVerifyMessageHashRejectsWrongSecret(t *testing.T) {
	writer := newBase("conn-1", HandlerConfig{HashSecret: "writer-secret"})
	reader := newBase("conn-1", HandlerConfig{HashSecret: "reader-secret"})
	le := &envelope.LightEnvelope{MessageID: "m1", PayloadKey: "payload:m1"}

	hash, err := writer.createMessageHash(le)
	require.NoError(t, err)
	le.Hash = hash

	assert.False(t, reader.verifyMessageHash(le))
}
