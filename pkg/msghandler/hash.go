package msghandler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/chris-alexander-pop/ti-engine/pkg/envelope"
	"github.com/chris-alexander-pop/ti-engine/pkg/errors"
)

// createMessageHash canonicalizes le (with Hash cleared) and returns the hex
// digest of its keyed HMAC-SHA256, per invariant 5: the hash covers the
// envelope with hash itself removed.
func (b *base) createMessageHash(le *envelope.LightEnvelope) (string, error) {
	canon, err := envelope.Canonicalize(le)
	if err != nil {
		return "", errors.Wrap(err, "failed to canonicalize envelope for hashing")
	}
	mac := hmac.New(sha256.New, []byte(b.cfg.HashSecret))
	mac.Write(canon)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// verifyMessageHash reports whether le.Hash matches the keyed digest of its
// own canonical form.
func (b *base) verifyMessageHash(le *envelope.LightEnvelope) bool {
	expected, err := b.createMessageHash(le)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(le.Hash))
}
