package http

import (
	"context"
	"net/http"

	authmw "github.com/qknou/qknou-web/internal/auth/middleware"
	"github.com/qknou/qknou-web/internal/history"
)

type SubmissionLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]history.Submission, error)
}

// GET /api/me/submissions?limit=50
func MySubmissionsHandler(h SubmissionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		list, err := h.ListByUser(r.Context(), sub, parseIntDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
