package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qknou/qknou-web/internal/exam"
	"github.com/qknou/qknou-web/internal/session"
	"github.com/qknou/qknou-web/internal/tab"
)

// POST /api/tabs/{tabID}/memorize/{examID}
func MountMemorizeHandler(reg *tab.Registry) http.HandlerFunc {
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
		c, err := t.MountMemorize(r.Context(), examID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c.View())
	}
}

func MemorizeViewHandler(reg *tab.Registry) http.HandlerFunc {
	return memorizeAction(reg, nil)
}

// MemorizeActionHandler serves select, reveal, reset, next, prev and jump.
// Actions that do not apply leave the session as it was; the view is
// returned either way.
func MemorizeActionHandler(reg *tab.Registry, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var act func(c *session.MemorizeController, body actionBody)
		switch action {
		case "select":
			act = func(c *session.MemorizeController, b actionBody) { c.SelectAnswer(exam.ChoiceNumber(b.Choice)) }
		case "reveal":
			act = func(c *session.MemorizeController, _ actionBody) { c.Reveal() }
		case "reset":
			act = func(c *session.MemorizeController, _ actionBody) { c.ResetQuestion() }
		case "next":
			act = func(c *session.MemorizeController, _ actionBody) { c.Next() }
		case "prev":
			act = func(c *session.MemorizeController, _ actionBody) { c.Prev() }
		case "jump":
			act = func(c *session.MemorizeController, b actionBody) { c.JumpTo(b.Number) }
		default:
			http.Error(w, "unknown action", http.StatusNotFound)
			return
		}
		memorizeAction(reg, act)(w, r)
	}
}

// actionBody is the optional JSON body of an action: {"choice":2} for
// select, {"number":10} for jump.
type actionBody struct {
	Choice int `json:"choice"`
	Number int `json:"number"`
}

func decodeAction(r *http.Request) (actionBody, error) {
	var b actionBody
	if r.Body == nil || r.ContentLength == 0 {
		return b, nil
	}
	err := json.NewDecoder(r.Body).Decode(&b)
	return b, err
}

func memorizeAction(reg *tab.Registry, act func(*session.MemorizeController, actionBody)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := lookupTab(reg, r)
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := t.Memorize()
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
