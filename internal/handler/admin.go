package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"community-portal/internal/model"
	"community-portal/internal/service"
)

// AdminHandler serves the token-guarded maintenance endpoints.
type AdminHandler struct {
	rollover    *service.RolloverService
	leaderboard *service.LeaderboardService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(rollover *service.RolloverService, leaderboard *service.LeaderboardService) *AdminHandler {
	return &AdminHandler{
		rollover:    rollover,
		leaderboard: leaderboard,
	}
}

type rolloverRequest struct {
	CloseWeek bool `json:"close_week"`
}

type rolloverResponse struct {
	OK         bool                 `json:"ok"`
	Leaders    int                  `json:"leaders"`
	ClosedWeek bool                 `json:"closed_week"`
	Summary    *model.WeeklySummary `json:"summary,omitempty"`
}

// HandleRollover handles POST /api/rollover.
func (h *AdminHandler) HandleRollover(w http.ResponseWriter, r *http.Request) {
	var req rolloverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.rollover.Perform(r.Context(), req.CloseWeek)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().
		Str("remote_addr", r.RemoteAddr).
		Bool("close_week", req.CloseWeek).
		Str("operation", "rollover").
		Msg("Admin operation executed")

	writeJSON(w, http.StatusOK, rolloverResponse{
		OK:         true,
		Leaders:    result.Leaders,
		ClosedWeek: result.ClosedWeek,
		Summary:    result.Summary,
	})
}

type ashRequest struct {
	Nick  string          `json:"nick" validate:"required"`
	Ash   json.RawMessage `json:"ash" validate:"required"`
	Field string          `json:"field" validate:"required"`
}

type ashResponse struct {
	OK        bool   `json:"ok"`
	Nick      string `json:"nick"`
	PointsDay int64  `json:"points_day"`
}

// ashText turns the ash value, sent as a JSON string or number, into text.
func ashText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: ash must be a string or a number", errBadRequest)
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: ash must be a string or a number", errBadRequest)
	}
	return n.String(), nil
}

// HandleSetAsh handles POST /api/ash/set.
func (h *AdminHandler) HandleSetAsh(w http.ResponseWriter, r *http.Request) {
	var req ashRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ash, err := ashText(req.Ash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	leader, err := h.leaderboard.SetAsh(r.Context(), req.Nick, ash, req.Field)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ashResponse{
		OK:        true,
		Nick:      strings.TrimSpace(leader.Nick),
		PointsDay: leader.PointsDay,
	})
}
