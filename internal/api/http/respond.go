package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/session"
	"github.com/qknou/qknou-web/internal/tab"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain and upstream errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var fe *examapi.FetchError
	var se *examapi.SubmitError
	switch {
	case errors.Is(err, tab.ErrNotFound):
		http.Error(w, "tab not found", http.StatusNotFound)
	case errors.Is(err, tab.ErrNotMounted):
		http.Error(w, "no session mounted", http.StatusConflict)
	case errors.Is(err, session.ErrInvalidSession), errors.Is(err, session.ErrNoQuestions), errors.Is(err, examapi.ErrEmptyExam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &fe) && fe.Status == http.StatusNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case errors.As(err, &fe), errors.As(err, &se), errors.Is(err, session.ErrIncompleteGrading):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
