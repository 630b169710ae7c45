package casefile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// PostgresStore persists cases. Mutate takes a row lock (SELECT FOR UPDATE)
// inside a transaction, so concurrent mutations of the same case serialize.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a case store on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectCase = `
	SELECT id, reported_by, status, signature_family, signature_authority, jurisdiction,
		resolved_at, retention_expiry, created_at, updated_at
	FROM cases`

func (s *PostgresStore) Create(ctx context.Context, c Case) error {
	query := `
		INSERT INTO cases
			(id, reported_by, status, signature_family, signature_authority, jurisdiction, retention_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		c.ID.String(), c.ReportedBy.String(), string(c.Status),
		c.SignatureFamily, c.SignatureAuthority, c.Jurisdiction.String(),
		c.RetentionExpiry, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, caseID id.CaseID) (Case, error) {
	c, err := scanCase(s.pool.QueryRow(ctx, selectCase+` WHERE id = $1`, caseID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Case{}, sentinel.ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) Mutate(ctx context.Context, caseID id.CaseID, fn func(c *Case) error) (Case, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Case{}, fmt.Errorf("begin case mutation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := scanCase(tx.QueryRow(ctx, selectCase+` WHERE id = $1 FOR UPDATE`, caseID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Case{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Case{}, err
	}

	if err := fn(&c); err != nil {
		return Case{}, err
	}

	update := `
		UPDATE cases
		SET status = $2, signature_family = $3, signature_authority = $4,
			resolved_at = $5, retention_expiry = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update,
		c.ID.String(), string(c.Status), c.SignatureFamily, c.SignatureAuthority,
		c.ResolvedAt, c.RetentionExpiry, c.UpdatedAt,
	); err != nil {
		return Case{}, fmt.Errorf("update case: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("commit case mutation: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var (
		c                    Case
		caseID, reportedBy   string
		jurisdiction         string
		resolvedAt, retained *time.Time
	)
	err := row.Scan(&caseID, &reportedBy, (*string)(&c.Status), &c.SignatureFamily, &c.SignatureAuthority,
		&jurisdiction, &resolvedAt, &retained, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Case{}, err
	}

	parsedCase, err := id.ParseCaseID(caseID)
	if err != nil {
		return Case{}, fmt.Errorf("corrupt case id: %w", err)
	}
	parsedReporter, err := id.ParseUserID(reportedBy)
	if err != nil {
		return Case{}, fmt.Errorf("corrupt reporter id: %w", err)
	}
	parsedJurisdiction, err := id.ParseJurisdiction(jurisdiction)
	if err != nil {
		return Case{}, fmt.Errorf("corrupt jurisdiction: %w", err)
	}
	c.ID = parsedCase
	c.ReportedBy = parsedReporter
	c.Jurisdiction = parsedJurisdiction
	c.ResolvedAt = resolvedAt
	c.RetentionExpiry = retained
	return c, nil
}
