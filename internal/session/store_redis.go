package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "surasmart/pkg/domain"
	"surasmart/pkg/platform/sentinel"
)

// RedisStore persists sessions as JSON values. Close uses WATCH-based
// optimistic locking so two concurrent closures of the same session cannot
// both succeed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a session store on the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return "session:" + sessionID.String()
}

type sessionDTO struct {
	ID                string     `json:"id"`
	CaseID            string     `json:"case_id"`
	UserID            string     `json:"user_id"`
	ConsentGiven      bool       `json:"consent_given"`
	CandidatesScanned int        `json:"candidates_scanned"`
	MatchFound        bool       `json:"match_found"`
	Confidence        float64    `json:"confidence"`
	RequiresReview    bool       `json:"requires_review"`
	BestMatch         string     `json:"best_match,omitempty"`
	DeviceLabel       string     `json:"device_label,omitempty"`
	Closed            bool       `json:"closed"`
	ClosureAction     string     `json:"closure_action,omitempty"`
	ClosureNotes      string     `json:"closure_notes,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ElapsedMillis     int64      `json:"elapsed_ms"`
}

func toDTO(s SearchSession) sessionDTO {
	dto := sessionDTO{
		ID:                s.ID.String(),
		CaseID:            s.CaseID.String(),
		UserID:            s.UserID.String(),
		ConsentGiven:      s.ConsentGiven,
		CandidatesScanned: s.CandidatesScanned,
		MatchFound:        s.MatchFound,
		Confidence:        s.Confidence,
		RequiresReview:    s.RequiresReview,
		DeviceLabel:       s.DeviceLabel,
		Closed:            s.Closed,
		ClosureAction:     s.ClosureAction.String(),
		ClosureNotes:      s.ClosureNotes,
		ClosedAt:          s.ClosedAt,
		CreatedAt:         s.CreatedAt,
		ElapsedMillis:     s.ElapsedMillis,
	}
	if s.BestMatch != nil {
		dto.BestMatch = s.BestMatch.String()
	}
	return dto
}

func fromDTO(dto sessionDTO) (SearchSession, error) {
	sessionID, err := id.ParseSessionID(dto.ID)
	if err != nil {
		return SearchSession{}, fmt.Errorf("corrupt session id: %w", err)
	}
	caseID, err := id.ParseCaseID(dto.CaseID)
	if err != nil {
		return SearchSession{}, fmt.Errorf("corrupt case id: %w", err)
	}
	userID, err := id.ParseUserID(dto.UserID)
	if err != nil {
		return SearchSession{}, fmt.Errorf("corrupt user id: %w", err)
	}
	sess := SearchSession{
		ID:                sessionID,
		CaseID:            caseID,
		UserID:            userID,
		ConsentGiven:      dto.ConsentGiven,
		CandidatesScanned: dto.CandidatesScanned,
		MatchFound:        dto.MatchFound,
		Confidence:        dto.Confidence,
		RequiresReview:    dto.RequiresReview,
		DeviceLabel:       dto.DeviceLabel,
		Closed:            dto.Closed,
		ClosureAction:     id.ClosureAction(dto.ClosureAction),
		ClosureNotes:      dto.ClosureNotes,
		ClosedAt:          dto.ClosedAt,
		CreatedAt:         dto.CreatedAt,
		ElapsedMillis:     dto.ElapsedMillis,
	}
	if dto.BestMatch != "" {
		matchID, err := id.ParseMatchID(dto.BestMatch)
		if err != nil {
			return SearchSession{}, fmt.Errorf("corrupt match id: %w", err)
		}
		sess.BestMatch = &matchID
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess SearchSession) error {
	raw, err := json.Marshal(toDTO(sess))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (SearchSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SearchSession{}, sentinel.ErrNotFound
	}
	if err != nil {
		return SearchSession{}, fmt.Errorf("load session: %w", err)
	}
	var dto sessionDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return SearchSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return fromDTO(dto)
}

func (s *RedisStore) Close(ctx context.Context, sessionID id.SessionID, fn func(sess *SearchSession) error) (SearchSession, error) {
	key := sessionKey(sessionID)
	var closed SearchSession

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}
		var dto sessionDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		sess, err := fromDTO(dto)
		if err != nil {
			return err
		}
		if sess.Closed {
			return sentinel.ErrInvalidState
		}
		if err := fn(&sess); err != nil {
			return err
		}
		sess.Closed = true

		out, err := json.Marshal(toDTO(sess))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		closed = sess
		return nil
	}

	// Retry on optimistic-lock contention; domain errors surface immediately.
	for range 3 {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return SearchSession{}, err
		}
		return closed, nil
	}
	return SearchSession{}, fmt.Errorf("close session: too much contention on %s", sessionID)
}
