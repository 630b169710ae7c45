// Package domain holds value types shared across services: typed identifiers,
// role capabilities, and closed enumerations parsed at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "surasmart/pkg/domain-errors"
)

// Typed identifiers prevent cross-entity assignment at compile time.
// Construct via the Parse functions at trust boundaries; direct casting
// bypasses validation.
type (
	// CaseID identifies a missing-person case.
	CaseID uuid.UUID
	// RecordID identifies a biometric record (stored embedding).
	RecordID uuid.UUID
	// MatchID identifies a match candidate in the ledger.
	MatchID uuid.UUID
	// SessionID identifies a search session.
	SessionID uuid.UUID
	// UserID identifies an authenticated actor.
	UserID uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be empty", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "invalid %s", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be the nil uuid", label)
	}
	return u, nil
}

// ParseCaseID validates and returns a CaseID.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s, "case id")
	return CaseID(u), err
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record id")
	return RecordID(u), err
}

// ParseMatchID validates and returns a MatchID.
func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID(s, "match id")
	return MatchID(u), err
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// NewCaseID returns a fresh random CaseID.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewRecordID returns a fresh random RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewMatchID returns a fresh random MatchID.
func NewMatchID() MatchID { return MatchID(uuid.New()) }

// NewSessionID returns a fresh random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

func (id CaseID) String() string    { return uuid.UUID(id).String() }
func (id RecordID) String() string  { return uuid.UUID(id).String() }
func (id MatchID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
