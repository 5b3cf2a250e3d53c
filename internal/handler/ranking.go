package handler

import (
	"net/http"

	"community-portal/internal/service"
)

// LeaderboardHandler serves the leaderboard projections and bulk profile edits.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// HandleDay handles GET /api/leaders/day?limit=N.
func (h *LeaderboardHandler) HandleDay(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.TopByDay(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleWeek handles GET /api/leaders/week?limit=N.
func (h *LeaderboardHandler) HandleWeek(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.leaderboard.TopByWeek(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weeks)
}

// HandleByDepartments handles GET /api/leaders/by-depts?depts=a,b,c.
func (h *LeaderboardHandler) HandleByDepartments(w http.ResponseWriter, r *http.Request) {
	depts := service.ParseDepartments(r.URL.Query().Get("depts"))

	entries, err := h.leaderboard.ByDepartments(r.Context(), depts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type bulkRowRequest struct {
	ID           string `json:"id" validate:"required"`
	Nick         string `json:"nick" validate:"required"`
	AccountID    string `json:"account_id" validate:"required"`
	AvatarBase64 string `json:"avatar_base64"`
}

type bulkRequest struct {
	Rows []bulkRowRequest `json:"rows" validate:"dive"`
}

// HandleBulk handles POST /api/leaders/bulk.
func (h *LeaderboardHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rows := make([]service.BulkRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, service.BulkRow{
			ID:           row.ID,
			Nick:         row.Nick,
			AccountID:    row.AccountID,
			AvatarBase64: row.AvatarBase64,
		})
	}

	if err := h.leaderboard.BulkUpdate(r.Context(), rows); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
