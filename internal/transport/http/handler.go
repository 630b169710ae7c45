// Package http exposes the decision pipeline over HTTP: search, session
// closure, case lifecycle, and match review.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"surasmart/internal/casefile"
	"surasmart/internal/match"
	"surasmart/internal/platform/middleware"
	"surasmart/internal/record"
	"surasmart/internal/session"
	id "surasmart/pkg/domain"
	dErrors "surasmart/pkg/domain-errors"
	"surasmart/pkg/platform/httputil"
)

// maxUploadBytes bounds multipart image uploads.
const maxUploadBytes = 10 << 20

// Handler serves the HTTP API.
type Handler struct {
	sessions *session.Service
	records  *record.Service
	cases    *casefile.Service
	ledger   *match.Ledger
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(sessions *session.Service, records *record.Service, cases *casefile.Service, ledger *match.Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		records:  records,
		cases:    cases,
		ledger:   ledger,
		logger:   logger,
	}
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

func actorID(r *http.Request) id.UserID {
	return middleware.GetUserID(r.Context())
}

func actorRole(r *http.Request) id.Role {
	return middleware.GetRole(r.Context())
}

// =============================================================================
// Cases
// =============================================================================

type createCaseRequest struct {
	Jurisdiction string `json:"jurisdiction"`
}

type caseResponse struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	SignatureFamily    bool       `json:"signature_family"`
	SignatureAuthority bool       `json:"signature_authority"`
	Jurisdiction       string     `json:"jurisdiction"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	RetentionExpiry    *time.Time `json:"retention_expiry,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toCaseResponse(c casefile.Case) caseResponse {
	return caseResponse{
		ID:                 c.ID.String(),
		Status:             string(c.Status),
		SignatureFamily:    c.SignatureFamily,
		SignatureAuthority: c.SignatureAuthority,
		Jurisdiction:       c.Jurisdiction.String(),
		ResolvedAt:         c.ResolvedAt,
		RetentionExpiry:    c.RetentionExpiry,
		CreatedAt:          c.CreatedAt,
	}
}

func (h *Handler) createCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	jurisdiction, err := id.ParseJurisdiction(req.Jurisdiction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.cases.Create(r.Context(), actorID(r), jurisdiction)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *Handler) getCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.cases.Get(r.Context(), caseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

type transitionRequest struct {
	To string `json:"to"`
}

func (h *Handler) transitionCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	to, err := casefile.ParseStatus(req.To)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.cases.Transition(r.Context(), caseID, to, actorID(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

type signResponse struct {
	CaseID             string `json:"case_id"`
	IsClosed           bool   `json:"is_closed"`
	SignatureFamily    bool   `json:"signature_family"`
	SignatureAuthority bool   `json:"signature_authority"`
	Status             string `json:"status"`
}

func (h *Handler) signCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.cases.Sign(r.Context(), caseID, actorID(r), actorRole(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, signResponse{
		CaseID:             caseID.String(),
		IsClosed:           result.IsClosed,
		SignatureFamily:    result.FamilySigned,
		SignatureAuthority: result.AuthoritySigned,
		Status:             string(result.Case.Status),
	})
}

type purgeResponse struct {
	CaseID        string `json:"case_id"`
	PurgedRecords int    `json:"purged_records"`
}

func (h *Handler) purgeCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	purged, err := h.cases.PurgeExpired(r.Context(), caseID, actorID(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, purgeResponse{CaseID: caseID.String(), PurgedRecords: purged})
}

// =============================================================================
// Records
// =============================================================================

type recordResponse struct {
	ID        string  `json:"id"`
	CaseID    string  `json:"case_id"`
	Source    string  `json:"source"`
	Status    string  `json:"status"`
	Quality   float64 `json:"quality"`
	CreatedAt string  `json:"created_at"`
}

func (h *Handler) ingestRecord(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	image, err := readImagePart(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	source, err := id.ParseMatchSource(r.FormValue("source"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.records.Ingest(r.Context(), caseID, source, image)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, recordResponse{
		ID:        rec.ID.String(),
		CaseID:    rec.CaseID.String(),
		Source:    rec.Source.String(),
		Status:    string(rec.Status),
		Quality:   rec.Quality,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// Search
// =============================================================================

type searchResponse struct {
	SessionID           string   `json:"session_id"`
	MatchFound          bool     `json:"match_found"`
	Confidence          float64  `json:"confidence"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	CandidatesScanned   int      `json:"candidates_scanned"`
	ElapsedMillis       int64    `json:"elapsed_ms"`
	MatchID             string   `json:"match_id,omitempty"`
	ClosureOptions      []string `json:"closure_options"`
}

func toSearchResponse(sess session.SearchSession) searchResponse {
	resp := searchResponse{
		SessionID:           sess.ID.String(),
		MatchFound:          sess.MatchFound,
		Confidence:          round4(sess.Confidence),
		RequiresHumanReview: sess.RequiresReview,
		CandidatesScanned:   sess.CandidatesScanned,
		ElapsedMillis:       sess.ElapsedMillis,
		ClosureOptions:      session.ClosureOptionsFor(sess),
	}
	if sess.BestMatch != nil {
		resp.MatchID = sess.BestMatch.String()
	}
	return resp
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	image, err := readImagePart(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	caseID, err := id.ParseCaseID(r.FormValue("case_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	consent := r.FormValue("consent") == "true"

	sess, err := h.sessions.Search(r.Context(), actorID(r), caseID, image, consent)
	if err != nil {
		// A no-face session is still recorded; surface its ID with the error.
		if dErrors.HasCode(err, dErrors.CodeUnprocessable) && !sess.ID.IsNil() {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":             string(dErrors.CodeUnprocessable),
				"error_description": "No face detected in uploaded image.",
				"session_id":        sess.ID.String(),
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSearchResponse(sess))
}

// readImagePart extracts the uploaded image from a multipart form.
func readImagePart(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with an image part")
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "image part is required")
	}
	defer func() { _ = file.Close() }()
	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read image part")
	}
	return image, nil
}

// =============================================================================
// Sessions
// =============================================================================

type closeSessionRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

type closeSessionResponse struct {
	SessionID     string `json:"session_id"`
	Closed        bool   `json:"closed"`
	ClosureAction string `json:"closure_action"`
	Feedback      string `json:"feedback"`
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	action, err := id.ParseClosureAction(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.sessions.Close(r.Context(), sessionID, actorID(r), action, req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, closeSessionResponse{
		SessionID:     result.Session.ID.String(),
		Closed:        result.Session.Closed,
		ClosureAction: result.Session.ClosureAction.String(),
		Feedback:      result.Feedback,
	})
}

// =============================================================================
// Match review
// =============================================================================

type reviewRequest struct {
	Notes string `json:"notes"`
}

type matchResponse struct {
	ID                  string  `json:"id"`
	CaseID              string  `json:"case_id"`
	RecordID            string  `json:"record_id"`
	Confidence          float64 `json:"confidence"`
	Status              string  `json:"status"`
	RequiresHumanReview bool    `json:"requires_human_review"`
	VerificationNotes   string  `json:"verification_notes,omitempty"`
}

func toMatchResponse(candidate match.MatchCandidate) matchResponse {
	return matchResponse{
		ID:                  candidate.ID.String(),
		CaseID:              candidate.CaseID.String(),
		RecordID:            candidate.RecordID.String(),
		Confidence:          round4(candidate.Confidence),
		Status:              string(candidate.Status),
		RequiresHumanReview: candidate.RequiresHumanReview,
		VerificationNotes:   candidate.VerificationNotes,
	}
}

func (h *Handler) verifyMatch(w http.ResponseWriter, r *http.Request) {
	h.reviewMatch(w, r, h.ledger.Verify)
}

func (h *Handler) rejectMatch(w http.ResponseWriter, r *http.Request) {
	h.reviewMatch(w, r, h.ledger.Reject)
}

func (h *Handler) reviewMatch(w http.ResponseWriter, r *http.Request, decide func(ctx context.Context, matchID id.MatchID, actor id.UserID, role id.Role, notes string) (match.MatchCandidate, error)) {
	matchID, err := id.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	candidate, err := decide(r.Context(), matchID, actorID(r), actorRole(r), req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toMatchResponse(candidate))
}
