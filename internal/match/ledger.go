package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"surasmart/internal/matcher"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/audit"
	"surasmart/pkg/platform/sentinel"
)

// CaseDirectory is the slice of the case service the ledger needs: the
// jurisdiction tag for audit events.
type CaseDirectory interface {
	JurisdictionOf(ctx context.Context, caseID id.CaseID) (id.Jurisdiction, error)
}

// Ledger records match candidates and applies human review decisions.
type Ledger struct {
	store  Store
	gate   *matcher.Gate
	cases  CaseDirectory
	audit  *audit.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a match ledger.
func NewLedger(store Store, gate *matcher.Gate, cases CaseDirectory, publisher *audit.Publisher, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		gate:   gate,
		cases:  cases,
		audit:  publisher,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record upserts a candidate for the (case, record) pair. A new pair starts
// in pending_review with the gate's flag; re-recording the same pair updates
// confidence, distance, and the flag in place. Exactly one row per pair
// survives concurrent searches.
func (l *Ledger) Record(ctx context.Context, caseID id.CaseID, recordID id.RecordID, confidence, distance float64, source id.MatchSource) (MatchCandidate, error) {
	now := l.now().UTC()
	candidate := MatchCandidate{
		ID:                  id.NewMatchID(),
		CaseID:              caseID,
		RecordID:            recordID,
		Confidence:          confidence,
		Distance:            distance,
		Source:              source,
		Status:              StatusPendingReview,
		RequiresHumanReview: l.gate.RequiresReview(confidence),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	stored, err := l.store.Upsert(ctx, candidate)
	if err != nil {
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record match candidate")
	}
	l.logger.InfoContext(ctx, "match candidate recorded",
		slog.String("match_id", stored.ID.String()),
		slog.String("case_id", caseID.String()),
		slog.Float64("confidence", confidence),
		slog.Bool("requires_review", stored.RequiresHumanReview),
	)
	return stored, nil
}

// Verify marks a candidate as a confirmed identification. Only actors with
// the verify capability may decide; the review flag is cleared no matter
// which band the confidence fell in.
func (l *Ledger) Verify(ctx context.Context, matchID id.MatchID, actor id.UserID, role id.Role, notes string) (MatchCandidate, error) {
	return l.decide(ctx, matchID, actor, role, notes, StatusVerified, audit.ActionMatchVerified)
}

// Reject marks a candidate as a false positive. Same authorization and
// flag-clearing rules as Verify.
func (l *Ledger) Reject(ctx context.Context, matchID id.MatchID, actor id.UserID, role id.Role, notes string) (MatchCandidate, error) {
	return l.decide(ctx, matchID, actor, role, notes, StatusFalsePositive, audit.ActionMatchRejected)
}

func (l *Ledger) decide(ctx context.Context, matchID id.MatchID, actor id.UserID, role id.Role, notes string, status Status, action string) (MatchCandidate, error) {
	if !role.Capabilities().CanVerifyMatches {
		return MatchCandidate{}, dErrors.Newf(dErrors.CodeForbidden, "role %q cannot review matches", role)
	}

	decision := Decision{
		Status:     status,
		VerifiedBy: actor,
		VerifiedAt: l.now().UTC(),
		Notes:      notes,
	}
	candidate, err := l.store.ApplyDecision(ctx, matchID, decision)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return MatchCandidate{}, dErrors.New(dErrors.CodeNotFound, "match candidate not found")
		}
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply review decision")
	}

	jurisdiction, err := l.cases.JurisdictionOf(ctx, candidate.CaseID)
	if err != nil {
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve case jurisdiction")
	}
	event := audit.Event{
		CaseID:  candidate.CaseID,
		ActorID: actor,
		Action:  action,
		Metadata: map[string]string{
			"match_id":   candidate.ID.String(),
			"confidence": fmt.Sprintf("%.4f", candidate.Confidence),
		},
		Jurisdiction: jurisdiction,
	}
	if err := l.audit.Emit(ctx, event); err != nil {
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	return candidate, nil
}

// Finalize marks a candidate verified as part of a session closure. The
// closure itself is the authorization: the session owner chose "finalize",
// so no review capability is required here.
func (l *Ledger) Finalize(ctx context.Context, matchID id.MatchID, actor id.UserID, notes string) (MatchCandidate, error) {
	decision := Decision{
		Status:     StatusVerified,
		VerifiedBy: actor,
		VerifiedAt: l.now().UTC(),
		Notes:      notes,
	}
	candidate, err := l.store.ApplyDecision(ctx, matchID, decision)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return MatchCandidate{}, dErrors.New(dErrors.CodeNotFound, "match candidate not found")
		}
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize match candidate")
	}

	jurisdiction, err := l.cases.JurisdictionOf(ctx, candidate.CaseID)
	if err != nil {
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve case jurisdiction")
	}
	event := audit.Event{
		CaseID:  candidate.CaseID,
		ActorID: actor,
		Action:  audit.ActionMatchVerified,
		Metadata: map[string]string{
			"match_id": candidate.ID.String(),
			"via":      "session_finalize",
		},
		Jurisdiction: jurisdiction,
	}
	if err := l.audit.Emit(ctx, event); err != nil {
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	return candidate, nil
}

// Get returns a candidate by ID.
func (l *Ledger) Get(ctx context.Context, matchID id.MatchID) (MatchCandidate, error) {
	candidate, err := l.store.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return MatchCandidate{}, dErrors.New(dErrors.CodeNotFound, "match candidate not found")
		}
		return MatchCandidate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load match candidate")
	}
	return candidate, nil
}

// DecidedOutcomes returns all candidates with a final verdict.
func (l *Ledger) DecidedOutcomes(ctx context.Context) ([]MatchCandidate, error) {
	outcomes, err := l.store.ListDecided(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list decided candidates")
	}
	return outcomes, nil
}
