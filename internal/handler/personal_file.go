package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"community-portal/internal/service"
)

// PersonalFileHandler serves personnel records.
type PersonalFileHandler struct {
	files *service.PersonalFileService
}

// NewPersonalFileHandler creates a new PersonalFileHandler.
func NewPersonalFileHandler(files *service.PersonalFileService) *PersonalFileHandler {
	return &PersonalFileHandler{files: files}
}

// HandleList handles GET /api/personal-files.
func (h *PersonalFileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleGet handles GET /api/personal-files/{id}.
func (h *PersonalFileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	file, err := h.files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}
