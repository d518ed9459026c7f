package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/qknou/qknou-web/internal/auth/middleware"
	"github.com/qknou/qknou-web/internal/tab"
)

// lookupTab resolves {tabID}. A tab opened by a signed-in user is invisible
// to everyone else.
func lookupTab(reg *tab.Registry, r *http.Request) (*tab.Tab, error) {
	t, err := reg.Get(chi.URLParam(r, "tabID"))
	if err != nil {
		return nil, err
	}
	if owner := t.UserID(); owner != "" && owner != authmw.SubjectFromContext(r.Context()) {
		return nil, tab.ErrNotFound
	}
	return t, nil
}

// POST /api/tabs
func OpenTabHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := reg.Open(authmw.SubjectFromContext(r.Context()))
		writeJSON(w, http.StatusCreated, map[string]string{"tabId": t.ID()})
	}
}

// DELETE /api/tabs/{tabID}
func CloseTabHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := reg.Close(t.ID()); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/tabs/{tabID}/context
func TabContextHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t.State())
	}
}

// POST /api/tabs/{tabID}/end[?confirm=true]
//
// Ending with unanswered questions needs confirm=true; without it the header
// state comes back with 409 so the page can ask the user.
func EndExamHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		if st := t.State(); st.NeedsConfirmation && r.URL.Query().Get("confirm") != "true" {
			writeJSON(w, http.StatusConflict, st)
			return
		}
		if _, err := t.End(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t.State())
	}
}
