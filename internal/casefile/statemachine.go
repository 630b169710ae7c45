package casefile

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"surasmart/internal/platform/config"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/audit"
	"surasmart/pkg/platform/sentinel"
)

// dualSignatureNote is recorded when the second signature closes a case.
const dualSignatureNote = "dual signature confirmed"

// RecordPurger erases the biometric payload of a case's records.
type RecordPurger interface {
	Purge(ctx context.Context, caseID id.CaseID) (int, error)
}

// Service is the case lifecycle state machine. All mutations go through the
// store's per-case atomic Mutate, so concurrent transitions and signatures
// serialize.
type Service struct {
	store     Store
	audit     *audit.Publisher
	purger    RecordPurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the case service.
type Option func(*Service)

// WithClock overrides the service clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecordPurger wires the biometric purge hook used on retention expiry.
func WithRecordPurger(p RecordPurger) Option {
	return func(s *Service) { s.purger = p }
}

// WithRetentionHorizon overrides how long open cases retain biometric data.
func WithRetentionHorizon(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

// NewService creates a case service.
func NewService(store Store, publisher *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		audit:     publisher,
		retention: config.DefaultThresholds().RetentionHorizon,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new case in REPORTED. Open cases carry a rolling retention
// expiry of now plus the retention horizon; closure replaces it with the
// resolution timestamp.
func (s *Service) Create(ctx context.Context, reportedBy id.UserID, jurisdiction id.Jurisdiction) (Case, error) {
	now := s.now().UTC()
	expiry := now.Add(s.retention)
	c := Case{
		ID:              id.NewCaseID(),
		ReportedBy:      reportedBy,
		Status:          StatusReported,
		Jurisdiction:    jurisdiction,
		RetentionExpiry: &expiry,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
	}
	s.logger.InfoContext(ctx, "case opened",
		slog.String("case_id", c.ID.String()),
		slog.String("jurisdiction", jurisdiction.String()),
	)
	return c, nil
}

// Get returns a case by ID.
func (s *Service) Get(ctx context.Context, caseID id.CaseID) (Case, error) {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	return c, nil
}

// JurisdictionOf returns the jurisdiction tag of a case.
func (s *Service) JurisdictionOf(ctx context.Context, caseID id.CaseID) (id.Jurisdiction, error) {
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return "", err
	}
	return c.Jurisdiction, nil
}

// Transition moves a case to a new status. Transitions outside the table are
// rejected naming both states and leave the case untouched. Entering CLOSED
// stamps the resolution and retention-expiry timestamps.
func (s *Service) Transition(ctx context.Context, caseID id.CaseID, to Status, actor id.UserID) (Case, error) {
	var from Status
	c, err := s.store.Mutate(ctx, caseID, func(c *Case) error {
		from = c.Status
		return s.applyTransition(c, to)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Case{}, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return Case{}, err
		}
		return Case{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to transition case")
	}

	if err := s.emitTransition(ctx, c, from, to, actor, nil); err != nil {
		return Case{}, err
	}
	return c, nil
}

// applyTransition mutates the case in place after validating against the
// table. Must run inside Mutate.
func (s *Service) applyTransition(c *Case, to Status) error {
	if !CanTransition(c.Status, to) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot transition case from %s to %s", c.Status, to)
	}
	now := s.now().UTC()
	c.Status = to
	c.UpdatedAt = now
	if to == StatusClosed {
		if c.ResolvedAt == nil {
			resolved := now
			c.ResolvedAt = &resolved
		}
		c.RetentionExpiry = c.ResolvedAt
	} else {
		// Activity on an open case rolls the retention window forward.
		expiry := now.Add(s.retention)
		c.RetentionExpiry = &expiry
	}
	return nil
}

func (s *Service) emitTransition(ctx context.Context, c Case, from, to Status, actor id.UserID, metadata map[string]string) error {
	event := audit.Event{
		CaseID:       c.ID,
		ActorID:      actor,
		Action:       audit.TransitionAction(string(from), string(to)),
		Metadata:     metadata,
		Jurisdiction: c.Jurisdiction,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	return nil
}

// SignResult reports the signature state after a sign call.
type SignResult struct {
	Case            Case
	IsClosed        bool
	FamilySigned    bool
	AuthoritySigned bool
}

// Sign records one of the two independent closure signatures. Only cases in
// MATCH_FOUND or PENDING_CLOSURE are signable; a MATCH_FOUND case is
// auto-promoted to PENDING_CLOSURE first. Re-signing is idempotent. When the
// second flag lands, the case auto-closes with a dual-signature audit note.
func (s *Service) Sign(ctx context.Context, caseID id.CaseID, actor id.UserID, role id.Role) (SignResult, error) {
	sigRole, err := id.SignatureRoleFor(role)
	if err != nil {
		return SignResult{}, err
	}

	var (
		promoted bool
		closed   bool
		fromSign Status
	)
	c, err := s.store.Mutate(ctx, caseID, func(c *Case) error {
		if c.Status != StatusMatchFound && c.Status != StatusPendingClosure {
			return dErrors.Newf(dErrors.CodeInvalidTransition,
				"cannot sign case in state %s; signatures apply to %s or %s",
				c.Status, StatusMatchFound, StatusPendingClosure)
		}
		if c.Status == StatusMatchFound {
			if err := s.applyTransition(c, StatusPendingClosure); err != nil {
				return err
			}
			promoted = true
		}

		switch sigRole {
		case id.SignatureFamily:
			c.SignatureFamily = true
		case id.SignatureAuthority:
			c.SignatureAuthority = true
		}
		c.UpdatedAt = s.now().UTC()

		if c.SignatureFamily && c.SignatureAuthority {
			fromSign = c.Status
			if err := s.applyTransition(c, StatusClosed); err != nil {
				return err
			}
			closed = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return SignResult{}, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return SignResult{}, err
		}
		return SignResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign case")
	}

	if promoted {
		if err := s.emitTransition(ctx, c, StatusMatchFound, StatusPendingClosure, actor, nil); err != nil {
			return SignResult{}, err
		}
	}
	if closed {
		metadata := map[string]string{"note": dualSignatureNote}
		if err := s.emitTransition(ctx, c, fromSign, StatusClosed, actor, metadata); err != nil {
			return SignResult{}, err
		}
	} else {
		event := audit.Event{
			CaseID:       c.ID,
			ActorID:      actor,
			Action:       audit.ActionSignatureAddedPrefix + string(sigRole),
			Jurisdiction: c.Jurisdiction,
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			return SignResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
		}
	}

	return SignResult{
		Case:            c,
		IsClosed:        c.Status == StatusClosed,
		FamilySigned:    c.SignatureFamily,
		AuthoritySigned: c.SignatureAuthority,
	}, nil
}

// PurgeExpired erases the biometric payload of a closed case whose retention
// horizon has passed. No-op error if the case is still open or not yet
// purge-eligible.
func (s *Service) PurgeExpired(ctx context.Context, caseID id.CaseID, actor id.UserID) (int, error) {
	if s.purger == nil {
		return 0, dErrors.New(dErrors.CodeInternal, "record purger is not configured")
	}
	c, err := s.Get(ctx, caseID)
	if err != nil {
		return 0, err
	}
	if c.Status != StatusClosed || c.RetentionExpiry == nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot purge case in state %s; purge applies to %s cases past retention", c.Status, StatusClosed)
	}
	if s.now().UTC().Before(*c.RetentionExpiry) {
		return 0, dErrors.New(dErrors.CodeInvalidTransition, "case retention horizon has not passed")
	}

	purged, err := s.purger.Purge(ctx, caseID)
	if err != nil {
		return 0, err
	}
	event := audit.Event{
		CaseID:       c.ID,
		ActorID:      actor,
		Action:       audit.ActionRecordPurged,
		Metadata:     map[string]string{"purged_records": strconv.Itoa(purged)},
		Jurisdiction: c.Jurisdiction,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	return purged, nil
}
