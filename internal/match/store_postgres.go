package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// PostgresStore persists match candidates. The unique constraint on
// (case_id, record_id) plus ON CONFLICT DO UPDATE makes Upsert atomic
// without an application-side lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a match store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, candidate MatchCandidate) (MatchCandidate, error) {
	query := `
		INSERT INTO match_candidates
			(id, case_id, record_id, confidence, distance, source, status, requires_human_review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (case_id, record_id) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			distance = EXCLUDED.distance,
			requires_human_review = EXCLUDED.requires_human_review,
			updated_at = EXCLUDED.updated_at
		RETURNING id, case_id, record_id, confidence, distance, source, status, requires_human_review,
			verified_by, verified_at, verification_notes, created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		candidate.ID.String(), candidate.CaseID.String(), candidate.RecordID.String(),
		candidate.Confidence, candidate.Distance, candidate.Source.String(),
		string(candidate.Status), candidate.RequiresHumanReview,
		candidate.CreatedAt, candidate.UpdatedAt,
	)
	stored, err := scanCandidate(row)
	if err != nil {
		return MatchCandidate{}, fmt.Errorf("upsert match candidate: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, matchID id.MatchID) (MatchCandidate, error) {
	query := selectCandidates + ` WHERE id = $1`
	candidate, err := scanCandidate(s.pool.QueryRow(ctx, query, matchID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return MatchCandidate{}, sentinel.ErrNotFound
	}
	return candidate, err
}

func (s *PostgresStore) ApplyDecision(ctx context.Context, matchID id.MatchID, decision Decision) (MatchCandidate, error) {
	query := `
		UPDATE match_candidates
		SET status = $2, requires_human_review = FALSE,
			verified_by = $3, verified_at = $4, verification_notes = $5, updated_at = $4
		WHERE id = $1
		RETURNING id, case_id, record_id, confidence, distance, source, status, requires_human_review,
			verified_by, verified_at, verification_notes, created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		matchID.String(), string(decision.Status), decision.VerifiedBy.String(), decision.VerifiedAt, decision.Notes,
	)
	candidate, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return MatchCandidate{}, sentinel.ErrNotFound
	}
	return candidate, err
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]MatchCandidate, error) {
	query := selectCandidates + ` WHERE case_id = $1 ORDER BY created_at ASC, id ASC`
	return s.list(ctx, query, caseID.String())
}

func (s *PostgresStore) ListDecided(ctx context.Context) ([]MatchCandidate, error) {
	query := selectCandidates + ` WHERE status IN ($1, $2, $3) ORDER BY created_at ASC, id ASC`
	return s.list(ctx, query, string(StatusVerified), string(StatusFalsePositive), string(StatusRejected))
}

const selectCandidates = `
	SELECT id, case_id, record_id, confidence, distance, source, status, requires_human_review,
		verified_by, verified_at, verification_notes, created_at, updated_at
	FROM match_candidates`

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]MatchCandidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}
	defer rows.Close()

	var candidates []MatchCandidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (MatchCandidate, error) {
	var (
		candidate                 MatchCandidate
		matchID, caseID, recordID string
		source                    string
		verifiedBy                *string
		verifiedAt                *time.Time
		notes                     *string
	)
	err := row.Scan(&matchID, &caseID, &recordID, &candidate.Confidence, &candidate.Distance,
		&source, (*string)(&candidate.Status), &candidate.RequiresHumanReview,
		&verifiedBy, &verifiedAt, &notes, &candidate.CreatedAt, &candidate.UpdatedAt)
	if err != nil {
		return MatchCandidate{}, err
	}

	parsedMatch, err := id.ParseMatchID(matchID)
	if err != nil {
		return MatchCandidate{}, fmt.Errorf("corrupt match id: %w", err)
	}
	parsedCase, err := id.ParseCaseID(caseID)
	if err != nil {
		return MatchCandidate{}, fmt.Errorf("corrupt case id: %w", err)
	}
	parsedRecord, err := id.ParseRecordID(recordID)
	if err != nil {
		return MatchCandidate{}, fmt.Errorf("corrupt record id: %w", err)
	}
	candidate.ID = parsedMatch
	candidate.CaseID = parsedCase
	candidate.RecordID = parsedRecord

	parsedSource, err := id.ParseMatchSource(source)
	if err != nil {
		return MatchCandidate{}, fmt.Errorf("corrupt match source: %w", err)
	}
	candidate.Source = parsedSource

	if verifiedBy != nil {
		parsedVerifier, err := id.ParseUserID(*verifiedBy)
		if err != nil {
			return MatchCandidate{}, fmt.Errorf("corrupt verifier id: %w", err)
		}
		candidate.VerifiedBy = &parsedVerifier
		candidate.VerifiedAt = verifiedAt
	}
	if notes != nil {
		candidate.VerificationNotes = *notes
	}
	return candidate, nil
}
