package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/session"
	"github.com/qknou/qknou-web/internal/tab"
)

// POST /api/tabs/{tabID}/test/{examID} mounts a test session and starts the
// countdown.
func MountTestModeHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		examID := strings.TrimSpace(chi.URLParam(r, "examID"))
		if examID == "" {
			writeError(w, session.ErrInvalidSession)
			return
		}
		c, err := t.MountTest(r.Context(), examID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c.View())
	}
}

// DELETE /api/tabs/{tabID}/test
func UnmountTestModeHandler(reg *tab.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		t.UnmountTest()
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestModeViewHandler(reg *tab.Registry) http.HandlerFunc {
	return testAction(reg, nil)
}

// TestModeActionHandler serves select, next, prev and jump. Selections after the
// exam was submitted are ignored.
func TestModeActionHandler(reg *tab.Registry, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var act func(c *session.TestController, body actionBody)
		switch action {
		case "select":
			act = func(c *session.TestController, b actionBody) { c.SelectAnswer(exam.ChoiceNumber(b.Choice)) }
		case "next":
			act = func(c *session.TestController, _ actionBody) { c.Next() }
		case "prev":
			act = func(c *session.TestController, _ actionBody) { c.Prev() }
		case "jump":
			act = func(c *session.TestController, b actionBody) { c.JumpTo(b.Number) }
		default:
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}
		testAction(reg, act)(w, r)
	}
}

func testAction(reg *tab.Registry, act func(*session.TestController, actionBody)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := t.Test()
		if err != nil {
			writeError(w, err)
			return
		}
		if act != nil {
			b, err := decodeAction(r)
			if err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
			act(c, b)
		}
		writeJSON(w, http.StatusOK, c.View())
	}
}
