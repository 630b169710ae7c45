// Package audit provides the immutable audit trail for case-lifecycle and
// match-review actions. Every event carries a tamper-evidence hash computed
// over a canonical JSON payload; the hash is a fingerprint only, not a
// distributed ledger.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	id "surasmart/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	CaseID           id.CaseID
	ActorID          id.UserID
	ActorFingerprint string
	Action           string
	Metadata         map[string]string
	Timestamp        time.Time
	Jurisdiction     id.Jurisdiction
	// Hash is the tamper-evidence fingerprint, filled by the publisher
	// before the event reaches any sink.
	Hash string
}

// Well-known audit actions. Transition actions are generated, not listed.
const (
	ActionSignatureAddedPrefix = "SIGNATURE_ADDED_BY_"
	ActionMatchVerified        = "MATCH_VERIFIED"
	ActionMatchRejected        = "MATCH_REJECTED"
	ActionSearchExecuted       = "SEARCH_EXECUTED"
	ActionSessionClosed        = "SESSION_CLOSED"
	ActionRecordPurged         = "RECORD_PURGED"
)

// TransitionAction builds the audit action label for a state transition.
func TransitionAction(from, to string) string {
	return "TRANSITION_" + from + "_TO_" + to
}

// ActorFingerprint hashes an actor identity so trails never carry raw IDs.
func ActorFingerprint(actor id.UserID) string {
	sum := sha256.Sum256([]byte(actor.String()))
	return hex.EncodeToString(sum[:])
}

// hashPayload fixes the canonical field order for the integrity hash.
// Fields are alphabetical and metadata keys are sorted by encoding/json,
// so equal events always produce equal hashes.
type hashPayload struct {
	Action           string            `json:"action"`
	ActorFingerprint string            `json:"actor_fingerprint"`
	CaseID           string            `json:"case_id"`
	Jurisdiction     string            `json:"jurisdiction"`
	Metadata         map[string]string `json:"metadata"`
	Timestamp        string            `json:"timestamp"`
}

// ComputeHash returns the sha256 hex digest of the event's canonical JSON.
func (e Event) ComputeHash() string {
	payload := hashPayload{
		Action:           e.Action,
		ActorFingerprint: e.ActorFingerprint,
		CaseID:           e.CaseID.String(),
		Jurisdiction:     e.Jurisdiction.String(),
		Metadata:         e.Metadata,
		Timestamp:        e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if payload.Metadata == nil {
		payload.Metadata = map[string]string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// The payload is composed of strings and a string map; marshalling
		// cannot fail short of memory corruption.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
