package http

import (
	"encoding/json"
	"net/http"

	"quizquest/internal/app"
	"quizquest/internal/auth"
)

type restHandler struct {
	history *app.HistoryService
	catalog Catalog
}

// GET /quizzes
func (h *restHandler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Catalog())
}

// GET /dashboard; guests get an empty dashboard.
func (h *restHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	writeJSON(w, http.StatusOK, h.history.Dashboard(r.Context(), userID))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
