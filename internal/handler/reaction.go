package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"community-portal/internal/service"
)

// ReactionHandler serves page reactions.
type ReactionHandler struct {
	reactions *service.ReactionService
}

// NewReactionHandler creates a new ReactionHandler.
func NewReactionHandler(reactions *service.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

// HandleCounts handles GET /api/reactions/counts?page=.
func (h *ReactionHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reactions.Counts(r.Context(), r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

type myReactionResponse struct {
	Reaction string `json:"reaction,omitempty"`
}

// HandleMine handles GET /api/reactions/my?page=&user_key=.
// Without a stored reaction the body is an empty object.
func (h *ReactionHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mine, err := h.reactions.Mine(r.Context(), q.Get("page"), q.Get("user_key"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var resp myReactionResponse
	if mine != nil {
		resp.Reaction = mine.Reaction
	}
	writeJSON(w, http.StatusOK, resp)
}

type setReactionRequest struct {
	Page     string          `json:"page" validate:"required"`
	UserKey  string          `json:"user_key" validate:"required"`
	Reaction json.RawMessage `json:"reaction"`
}

// reactionValue returns nil for an explicit null and the string otherwise.
// A missing field or any other JSON type is a bad request.
func reactionValue(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: reaction is required", errBadRequest)
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: reaction must be a string or null", errBadRequest)
	}
	return &s, nil
}

// HandleSet handles POST /api/reactions/set.
func (h *ReactionHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req setReactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reaction, err := reactionValue(req.Reaction)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.reactions.Set(r.Context(), req.Page, req.UserKey, reaction); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
