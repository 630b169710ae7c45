package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"surasmart/internal/embedding"
	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// PostgresStore persists biometric records with the embedding in a pgvector
// column sized to the system dimension.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a record store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, rec BiometricRecord) error {
	query := `
		INSERT INTO biometric_records (id, case_id, fingerprint, source, status, quality, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID.String(), rec.CaseID.String(), rec.Fingerprint, rec.Source.String(), string(rec.Status), rec.Quality, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert biometric record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, recordID id.RecordID) (BiometricRecord, error) {
	query := `
		SELECT id, case_id, embedding, fingerprint, source, status, quality, processing_error, created_at, processed_at
		FROM biometric_records
		WHERE id = $1
	`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, recordID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return BiometricRecord{}, sentinel.ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) SetExtracted(ctx context.Context, recordID id.RecordID, vec embedding.Vector, quality float64, at time.Time) error {
	query := `
		UPDATE biometric_records
		SET embedding = $2, quality = $3, status = $4, processed_at = $5
		WHERE id = $1 AND status = $6
	`
	tag, err := s.pool.Exec(ctx, query,
		recordID.String(), pgvector.NewVector(vec.Slice()), quality, string(StatusExtracted), at, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark record extracted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) SetFailed(ctx context.Context, recordID id.RecordID, reason string, at time.Time) error {
	query := `
		UPDATE biometric_records
		SET status = $2, processing_error = $3, processed_at = $4
		WHERE id = $1 AND status = $5
	`
	tag, err := s.pool.Exec(ctx, query,
		recordID.String(), string(StatusFailed), reason, at, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("mark record failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

// ListExtracted returns extraction-complete records in the canonical scan
// order: creation time, then ID. The matcher's tie-break depends on this
// ordering being stable across runs.
func (s *PostgresStore) ListExtracted(ctx context.Context) ([]BiometricRecord, error) {
	query := `
		SELECT id, case_id, embedding, fingerprint, source, status, quality, processing_error, created_at, processed_at
		FROM biometric_records
		WHERE status = $1 AND embedding IS NOT NULL
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, query, string(StatusExtracted))
	if err != nil {
		return nil, fmt.Errorf("list extracted records: %w", err)
	}
	defer rows.Close()

	var records []BiometricRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) PurgeByCase(ctx context.Context, caseID id.CaseID) (int, error) {
	query := `
		UPDATE biometric_records
		SET embedding = NULL, quality = 0, status = $2
		WHERE case_id = $1 AND status <> $2
	`
	tag, err := s.pool.Exec(ctx, query, caseID.String(), string(StatusPurged))
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (BiometricRecord, error) {
	var (
		rec             BiometricRecord
		recID, caseID   string
		source          string
		vec             *pgvector.Vector
		processingError *string
	)
	if err := row.Scan(&recID, &caseID, &vec, &rec.Fingerprint, &source, (*string)(&rec.Status), &rec.Quality, &processingError, &rec.CreatedAt, &rec.ProcessedAt); err != nil {
		return BiometricRecord{}, err
	}
	parsedSource, err := id.ParseMatchSource(source)
	if err != nil {
		return BiometricRecord{}, fmt.Errorf("corrupt record source: %w", err)
	}
	rec.Source = parsedSource

	parsedRec, err := id.ParseRecordID(recID)
	if err != nil {
		return BiometricRecord{}, fmt.Errorf("corrupt record id: %w", err)
	}
	parsedCase, err := id.ParseCaseID(caseID)
	if err != nil {
		return BiometricRecord{}, fmt.Errorf("corrupt case id: %w", err)
	}
	rec.ID = parsedRec
	rec.CaseID = parsedCase
	if processingError != nil {
		rec.ProcessingError = *processingError
	}
	if vec != nil {
		fixed, err := embedding.FromSlice(vec.Slice())
		if err != nil {
			return BiometricRecord{}, fmt.Errorf("corrupt embedding: %w", err)
		}
		rec.Embedding = &fixed
	}
	return rec, nil
}
