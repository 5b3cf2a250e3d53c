package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"community-portal/internal/guard"
	"community-portal/internal/model"
	"community-portal/internal/service"
)

// AccountHandler serves registration, login and the user directory.
type AccountHandler struct {
	users   *service.UserService
	editors *guard.DirectoryRole
}

// NewAccountHandler creates a new AccountHandler.
// editors answers the can-edit lookup.
func NewAccountHandler(users *service.UserService, editors *guard.DirectoryRole) *AccountHandler {
	return &AccountHandler{
		users:   users,
		editors: editors,
	}
}

type registerRequest struct {
	Nick       string `json:"nick" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Department string `json:"department"`
}

type loginRequest struct {
	Nick     string `json:"nick" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	OK   bool        `json:"ok"`
	User *model.User `json:"user"`
}

// HandleRegister handles POST /api/auth/register.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Nick, req.Password, req.Department)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{OK: true, User: user})
}

// HandleLogin handles POST /api/auth/login.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Login(r.Context(), req.Nick, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: user})
}

type canEditResponse struct {
	OK   bool   `json:"ok"`
	Role string `json:"role"`
}

// HandleCanEdit handles GET /api/users/can-edit?nick=.
func (h *AccountHandler) HandleCanEdit(w http.ResponseWriter, r *http.Request) {
	role, ok, err := h.editors.Check(r.Context(), r.URL.Query().Get("nick"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, canEditResponse{OK: ok, Role: role})
}

type roleResponse struct {
	Role string `json:"role"`
}

// HandleRoleByAccount handles GET /api/users/role?account_id=.
func (h *AccountHandler) HandleRoleByAccount(w http.ResponseWriter, r *http.Request) {
	role, err := h.users.RoleByAccountID(r.Context(), r.URL.Query().Get("account_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roleResponse{Role: role})
}

// HandleList handles GET /api/users.
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet handles GET /api/users/{id}.
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// HandleChangeRole handles POST /api/users/{id}/role.
// The acting user is the one named in X-User-Nick.
func (h *AccountHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	actor := r.Header.Get(guard.HeaderUserNick)
	if err := h.users.ChangeRole(r.Context(), actor, chi.URLParam(r, "id"), req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
