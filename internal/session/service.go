package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"surasmart/internal/casefile"
	"surasmart/internal/embedding"
	"surasmart/internal/match"
	"surasmart/internal/matcher"
	"surasmart/internal/platform/config"
	"surasmart/internal/platform/metrics"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/audit"
	"surasmart/pkg/platform/middleware/device"
	"surasmart/pkg/platform/sentinel"
)

// Ledger is the slice of the match ledger the orchestrator needs.
type Ledger interface {
	Record(ctx context.Context, caseID id.CaseID, recordID id.RecordID, confidence, distance float64, source id.MatchSource) (match.MatchCandidate, error)
	Finalize(ctx context.Context, matchID id.MatchID, actor id.UserID, notes string) (match.MatchCandidate, error)
}

// Cases is the slice of the case service the orchestrator needs.
type Cases interface {
	Get(ctx context.Context, caseID id.CaseID) (casefile.Case, error)
	JurisdictionOf(ctx context.Context, caseID id.CaseID) (id.Jurisdiction, error)
	Transition(ctx context.Context, caseID id.CaseID, to casefile.Status, actor id.UserID) (casefile.Case, error)
}

// Service runs search sessions end to end: consent gate, query extraction,
// gallery scan, ledger upsert, and the four-way closure.
type Service struct {
	store      Store
	extractor  embedding.Extractor
	matcher    *matcher.Matcher
	gate       *matcher.Gate
	ledger     Ledger
	cases      Cases
	audit      *audit.Publisher
	metrics    *metrics.Metrics
	thresholds config.Thresholds
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures the session service.
type Option func(*Service)

// WithClock overrides the service clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a session service.
func NewService(
	store Store,
	extractor embedding.Extractor,
	m *matcher.Matcher,
	gate *matcher.Gate,
	ledger Ledger,
	cases Cases,
	publisher *audit.Publisher,
	met *metrics.Metrics,
	thresholds config.Thresholds,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		extractor:  extractor,
		matcher:    m,
		gate:       gate,
		ledger:     ledger,
		cases:      cases,
		audit:      publisher,
		metrics:    met,
		thresholds: thresholds,
		logger:     logger,
		tracer:     otel.Tracer("surasmart/session"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one facial search for a case. Consent is a hard precondition:
// no embedding comparison happens without it. A failed extraction still
// records the session with zero candidates scanned; the recorded session is
// returned alongside the unprocessable error so callers can reference it.
func (s *Service) Search(ctx context.Context, userID id.UserID, caseID id.CaseID, image []byte, consent bool) (SearchSession, error) {
	if !consent {
		return SearchSession{}, dErrors.New(dErrors.CodeMissingConsent,
			"explicit consent is required before any biometric comparison")
	}
	if len(image) == 0 {
		return SearchSession{}, dErrors.New(dErrors.CodeValidation, "image payload is empty")
	}

	jurisdiction, err := s.cases.JurisdictionOf(ctx, caseID)
	if err != nil {
		return SearchSession{}, err
	}

	ctx, span := s.tracer.Start(ctx, "session.search")
	defer span.End()

	started := s.now()
	sess := SearchSession{
		ID:           id.NewSessionID(),
		CaseID:       caseID,
		UserID:       userID,
		ConsentGiven: true,
		DeviceLabel:  device.GetDeviceLabel(ctx),
		CreatedAt:    started.UTC(),
	}
	s.metrics.SearchesTotal.Inc()

	extractCtx, extractSpan := s.tracer.Start(ctx, "session.extract")
	extraction, err := s.extractor.Extract(extractCtx, image)
	extractSpan.End()
	if err != nil {
		if errors.Is(err, embedding.ErrNoFace) {
			s.metrics.ExtractionFailures.Inc()
			sess.ElapsedMillis = s.elapsedMillis(started)
			if serr := s.store.Save(ctx, sess); serr != nil {
				return SearchSession{}, dErrors.Wrap(serr, dErrors.CodeInternal, "failed to record search session")
			}
			if aerr := s.emitSearchAudit(ctx, sess, jurisdiction); aerr != nil {
				return SearchSession{}, aerr
			}
			return sess, dErrors.New(dErrors.CodeUnprocessable, "No face detected in uploaded image.")
		}
		return SearchSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "embedding extraction failed")
	}

	scanCtx, scanSpan := s.tracer.Start(ctx, "session.scan")
	result, err := s.matcher.Scan(scanCtx, extraction.Vector)
	scanSpan.End()
	if err != nil {
		return SearchSession{}, err
	}
	sess.CandidatesScanned = result.Scanned
	span.SetAttributes(attribute.Int("candidates_scanned", result.Scanned))

	if result.Best != nil {
		ledgerCtx, ledgerSpan := s.tracer.Start(ctx, "session.ledger")
		candidate, err := s.ledger.Record(ledgerCtx, caseID, result.Best.Record.ID,
			result.Best.Confidence, result.Best.Distance, result.Best.Record.Source)
		ledgerSpan.End()
		if err != nil {
			return SearchSession{}, err
		}
		sess.MatchFound = true
		sess.Confidence = result.Best.Confidence
		sess.RequiresReview = candidate.RequiresHumanReview
		matchID := candidate.ID
		sess.BestMatch = &matchID

		s.metrics.MatchesFoundTotal.Inc()
		if candidate.RequiresHumanReview {
			s.metrics.ReviewFlaggedTotal.Inc()
		}
	}

	elapsed := time.Duration(s.elapsedMillis(started)) * time.Millisecond
	sess.ElapsedMillis = s.elapsedMillis(started)
	s.metrics.SearchDuration.Observe(elapsed.Seconds())
	if elapsed > s.thresholds.SearchWarnAfter {
		s.logger.WarnContext(ctx, "search approaching SLA bound",
			slog.Duration("elapsed", elapsed),
			slog.Duration("sla", s.thresholds.SearchSLA),
			slog.String("session_id", sess.ID.String()),
		)
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return SearchSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record search session")
	}
	if err := s.emitSearchAudit(ctx, sess, jurisdiction); err != nil {
		return SearchSession{}, err
	}

	s.logger.InfoContext(ctx, "search executed",
		slog.String("session_id", sess.ID.String()),
		slog.String("case_id", caseID.String()),
		slog.Bool("match_found", sess.MatchFound),
		slog.Int("candidates_scanned", sess.CandidatesScanned),
		slog.Int64("elapsed_ms", sess.ElapsedMillis),
	)
	return sess, nil
}

func (s *Service) elapsedMillis(started time.Time) int64 {
	return s.now().Sub(started).Milliseconds()
}

func (s *Service) emitSearchAudit(ctx context.Context, sess SearchSession, jurisdiction id.Jurisdiction) error {
	event := audit.Event{
		CaseID:  sess.CaseID,
		ActorID: sess.UserID,
		Action:  audit.ActionSearchExecuted,
		Metadata: map[string]string{
			"session_id":         sess.ID.String(),
			"match_found":        strconv.FormatBool(sess.MatchFound),
			"candidates_scanned": strconv.Itoa(sess.CandidatesScanned),
		},
		Jurisdiction: jurisdiction,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	s.metrics.AuditEventsTotal.Inc()
	return nil
}

// CloseResult is the outcome of a session closure.
type CloseResult struct {
	Session  SearchSession
	Feedback string
}

// Close concludes a session with exactly one of the four closure actions. A
// second closure attempt is rejected. Only "finalize" has side effects: the
// attached match is verified and its case driven to the terminal state.
func (s *Service) Close(ctx context.Context, sessionID id.SessionID, actor id.UserID, action id.ClosureAction, notes string) (CloseResult, error) {
	if !action.IsValid() {
		return CloseResult{}, dErrors.Newf(dErrors.CodeValidation, "invalid closure action %q", action)
	}

	closedAt := s.now().UTC()
	sess, err := s.store.Close(ctx, sessionID, func(sess *SearchSession) error {
		sess.ClosureAction = action
		sess.ClosureNotes = notes
		sess.ClosedAt = &closedAt
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return CloseResult{}, dErrors.New(dErrors.CodeNotFound, "search session not found")
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			return CloseResult{}, dErrors.Newf(dErrors.CodeSessionClosed, "session %s is already closed", sessionID)
		}
		return CloseResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close search session")
	}

	if action == id.ClosureFinalize && sess.BestMatch != nil {
		if _, err := s.ledger.Finalize(ctx, *sess.BestMatch, actor, notes); err != nil {
			return CloseResult{}, err
		}
		c, err := s.cases.Get(ctx, sess.CaseID)
		if err != nil {
			return CloseResult{}, err
		}
		// The case may have closed already, e.g. through the dual-signature
		// path; finalizing then is a confirmation, not a second closure.
		if c.Status != casefile.StatusClosed {
			if _, err := s.cases.Transition(ctx, sess.CaseID, casefile.StatusClosed, actor); err != nil {
				return CloseResult{}, err
			}
			s.metrics.CasesClosedTotal.Inc()
		}
	}

	jurisdiction, err := s.cases.JurisdictionOf(ctx, sess.CaseID)
	if err != nil {
		return CloseResult{}, err
	}
	event := audit.Event{
		CaseID:  sess.CaseID,
		ActorID: actor,
		Action:  audit.ActionSessionClosed,
		Metadata: map[string]string{
			"session_id": sess.ID.String(),
			"action":     action.String(),
		},
		Jurisdiction: jurisdiction,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return CloseResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to emit audit event")
	}
	s.metrics.AuditEventsTotal.Inc()

	s.logger.InfoContext(ctx, "search session closed",
		slog.String("session_id", sess.ID.String()),
		slog.String("action", action.String()),
	)
	return CloseResult{Session: sess, Feedback: action.Feedback()}, nil
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (SearchSession, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return SearchSession{}, dErrors.New(dErrors.CodeNotFound, "search session not found")
		}
		return SearchSession{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load search session")
	}
	return sess, nil
}

// ClosureOptionsFor lists the closure actions available given whether the
// session found a match.
func ClosureOptionsFor(sess SearchSession) []string {
	if sess.MatchFound {
		return []string{
			id.ClosureSave.String(),
			id.ClosureFinalize.String(),
			id.ClosureSearchAgain.String(),
		}
	}
	return []string{
		id.ClosureSearchAgain.String(),
		id.ClosureNoMatch.String(),
	}
}
