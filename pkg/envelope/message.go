// Package envelope defines the wire data model shared by every component of
// the messaging core: the Message envelope, its ServiceCall specialization,
// service registration metadata, and the canonical encoding used for hashing
// and transport.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// Endpoint identifies one side of a message: an instance and the service
// domain route it belongs to. InstanceID is optional on a destination that
// only names a domain (routing decides the instance at the provider side).
type Endpoint struct {
	InstanceID string `json:"instanceId,omitempty"`
	Route      string `json:"route"`
}

// Message is the base envelope every piece of traffic on the broker is
// shaped as. Identity fields (MessageID, ChainID, ChainLevel, Predecessor,
// Source, CreatedOn) are set once and never mutated; routing/result fields
// are filled in as the message travels.
type Message struct {
	MessageID     string     `json:"messageId"`
	ChainID       string     `json:"chainId"`
	ChainLevel    int        `json:"chainLevel"`
	Predecessor   string     `json:"predecessor,omitempty"`
	Source        Endpoint   `json:"source"`
	Destination   Endpoint   `json:"destination"`
	CreatedOn     time.Time  `json:"createdOn"`
	FinishedOn    *time.Time `json:"finishedOn,omitempty"`
	ExecutionTime int64      `json:"executionTime,omitempty"` // milliseconds

	// Payload holds the arbitrary application value while the message lives
	// in-process. Once handed to the Sender it is replaced by the payload
	// store key (see LightEnvelope) for transport.
	Payload any `json:"payload,omitempty"`

	// Hash is the keyed digest of the canonical encoding with Hash itself
	// removed. Populated only on the wire form.
	Hash string `json:"hash,omitempty"`
}

// NewMessageID mints a unique message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// NewChainID mints a unique chain identifier, used for the root of a call tree.
func NewChainID() string {
	return uuid.NewString()
}

// StartChain populates the identity fields of a brand-new root message
// (ChainLevel 0, fresh ChainID, no Predecessor).
func (m *Message) StartChain() {
	m.ChainID = NewChainID()
	m.ChainLevel = 0
	m.Predecessor = ""
	m.CreatedOn = time.Now()
}

// ContinueChain populates the identity fields of a message descending from
// predecessor, inheriting its ChainID and incrementing ChainLevel.
func (m *Message) ContinueChain(predecessor *Message) {
	m.ChainID = predecessor.ChainID
	m.ChainLevel = predecessor.ChainLevel + 1
	m.Predecessor = predecessor.MessageID
	m.CreatedOn = time.Now()
}

// MarkFinished stamps FinishedOn and ExecutionTime relative to CreatedOn.
func (m *Message) MarkFinished(now time.Time) {
	m.FinishedOn = &now
	m.ExecutionTime = now.Sub(m.CreatedOn).Milliseconds()
}

// Clone returns a shallow copy of the message with a deep copy of the
// Destination/Source structs (value types, so this is really just here to
// make the "clone before transport" step in the Sender explicit and named).
func (m *Message) Clone() *Message {
	clone := *m
	return &clone
}
