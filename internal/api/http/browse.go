package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qknou/qknou-web/internal/exam"
)

// Catalog is the read-only subject and exam listing of the exam API.
type Catalog interface {
	ListSubjects(ctx context.Context, opts exam.ListOpts) (exam.SubjectPage, error)
	GetSubject(ctx context.Context, id string) (exam.Subject, error)
	ListExamsForSubject(ctx context.Context, subjectID string) ([]exam.Summary, error)
}

// GET /api/subjects?search=&page=1&limit=20
func ListSubjectsHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := cat.ListSubjects(r.Context(), exam.ListOpts{
			Search: strings.TrimSpace(q.Get("search")),
			Page:   parseIntDefault(q.Get("page"), 1),
			Limit:  parseIntDefault(q.Get("limit"), 20),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func GetSubjectHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cat.GetSubject(r.Context(), chi.URLParam(r, "subjectID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// GET /api/subjects/{subjectID}/exams lists the past exams, newest year first
// as the API returns them.
func ListSubjectExamsHandler(cat Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cat.ListExamsForSubject(r.Context(), chi.URLParam(r, "subjectID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []exam.Summary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
