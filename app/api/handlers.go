package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	mapservice "github.com/Black-And-White-Club/parkour-bot/app/modules/maps/application"
	userdb "github.com/Black-And-White-Club/parkour-bot/app/modules/user/infrastructure/repositories"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/observability/attr"
	"github.com/Black-And-White-Club/parkour-bot/app/shared/results"
	"github.com/go-chi/chi/v5"
)

const healthTimeout = 3 * time.Second

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

type healthBody struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	body := healthBody{Status: "ok"}
	for _, c := range h.deps.Checks {
		if err := c.Check(ctx); err != nil {
			if body.Failed == nil {
				body.Failed = map[string]string{}
			}
			body.Failed[c.Name] = err.Error()
		}
	}
	if len(body.Failed) > 0 {
		body.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) getProgression(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Progression.GetProgression(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) getStanding(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	standing, err := h.deps.Standings.GetStanding(r.Context(), userID)
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UserID string `json:"user_id"`
		userdb.Standing
	}{userID, standing})
}

func (h *handlers) getPlaytest(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Playtests.GetSession(r.Context(), chi.URLParam(r, "mapCode"))
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type finalizeBody struct {
	MapCode        string    `json:"map_code"`
	Approved       bool      `json:"approved"`
	ConsensusValue float64   `json:"consensus_value"`
	ConsensusGrade string    `json:"consensus_grade"`
	FinalizedAt    time.Time `json:"finalized_at"`
}

func (h *handlers) finalizePlaytest(w http.ResponseWriter, r *http.Request) {
	mapCode := chi.URLParam(r, "mapCode")
	h.logger.InfoContext(r.Context(), "Moderator finalize requested",
		attr.ExtractCorrelationID(r.Context()),
		attr.MapCode(mapCode),
		attr.UserID(claimsFrom(r.Context()).Subject),
	)
	result, err := h.deps.Playtests.Finalize(r.Context(), mapCode)
	if out, ok := unwrapResult(h, r, w, result, err); ok {
		writeJSON(w, http.StatusOK, finalizeBody{
			MapCode:        out.MapCode,
			Approved:       out.Approved,
			ConsensusValue: out.ConsensusValue,
			ConsensusGrade: out.ConsensusGrade,
			FinalizedAt:    out.FinalizedAt,
		})
	}
}

func (h *handlers) getMap(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Maps.GetMap(r.Context(), chi.URLParam(r, "mapCode"))
	if err != nil {
		h.fail(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type difficultyRequest struct {
	Grade string `json:"grade"`
}

type archivedRequest struct {
	Archived bool `json:"archived"`
}

type mapUpdateBody struct {
	Map      mapservice.MapView `json:"map"`
	Affected int                `json:"affected_users"`
}

func (h *handlers) putDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.deps.Maps.EditDifficulty(r.Context(), chi.URLParam(r, "mapCode"), req.Grade, claimsFrom(r.Context()).Subject)
	if out, ok := unwrapResult(h, r, w, result, err); ok {
		writeJSON(w, http.StatusOK, mapUpdateBody{Map: out.Map, Affected: out.Affected})
	}
}

func (h *handlers) putArchived(w http.ResponseWriter, r *http.Request) {
	var req archivedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.deps.Maps.SetArchived(r.Context(), chi.URLParam(r, "mapCode"), req.Archived, claimsFrom(r.Context()).Subject)
	if out, ok := unwrapResult(h, r, w, result, err); ok {
		writeJSON(w, http.StatusOK, mapUpdateBody{Map: out.Map, Affected: out.Affected})
	}
}

func (h *handlers) fail(r *http.Request, w http.ResponseWriter, err error) {
	if status := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "API request failed",
			attr.ExtractCorrelationID(r.Context()),
			attr.String("path", r.URL.Path),
			attr.Error(err),
		)
	}
	writeError(w, err)
}

// unwrapResult writes the error response for err or a failure result. It reports
// whether the caller should write the success body.
func unwrapResult[S any](h *handlers, r *http.Request, w http.ResponseWriter, result results.OperationResult[S, error], err error) (*S, bool) {
	if err != nil {
		h.fail(r, w, err)
		return nil, false
	}
	if result.IsFailure() {
		h.fail(r, w, *result.Failure)
		return nil, false
	}
	return result.Success, true
}
