// Package postgres persists audit events to the audit_events table via
// database/sql. Writes participate in a caller transaction when one is
// carried in the context.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/audit"
	txcontext "surasmart/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. The table is append-only;
// no update or delete statements exist in this package.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes one audit event row.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, case_id, actor_fingerprint, action, metadata, jurisdiction, event_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		event.CaseID.String(),
		event.ActorFingerprint,
		event.Action,
		metadata,
		event.Jurisdiction.String(),
		event.Hash,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByCase returns events for a case in append order.
func (s *Store) ListByCase(ctx context.Context, caseID id.CaseID) ([]audit.Event, error) {
	query := `
		SELECT case_id, actor_fingerprint, action, metadata, jurisdiction, event_hash, created_at
		FROM audit_events
		WHERE case_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event        audit.Event
			caseStr      string
			jurisdiction string
			metadata     []byte
			createdAt    time.Time
		)
		if err := rows.Scan(&caseStr, &event.ActorFingerprint, &event.Action, &metadata, &jurisdiction, &event.Hash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		parsed, err := id.ParseCaseID(caseStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt case id in audit row: %w", err)
		}
		event.CaseID = parsed
		event.Jurisdiction = id.Jurisdiction(jurisdiction)
		event.Timestamp = createdAt
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
