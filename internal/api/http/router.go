package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authmw "github.com/qknou/qknou-web/internal/auth/middleware"
	"github.com/qknou/qknou-web/internal/examapi"
	"github.com/qknou/qknou-web/internal/logger"
	"github.com/qknou/qknou-web/internal/tab"
)

type Deps struct {
	Tabs    *tab.Registry
	Catalog Catalog
	Auth    *authmw.AuthService
	History SubmissionLister // optional
}

// APIRoutes returns the /api subtree.
func APIRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(authmw.OptionalUser(d.Auth))
	r.Use(forwardBearer)

	r.Route("/subjects", func(r chi.Router) {
		r.Get("/", ListSubjectsHandler(d.Catalog))
		r.Get("/{subjectID}", GetSubjectHandler(d.Catalog))
		r.Get("/{subjectID}/exams", ListSubjectExamsHandler(d.Catalog))
	})

	r.Post("/tabs", OpenTabHandler(d.Tabs))
	r.Route("/tabs/{tabID}", func(r chi.Router) {
		r.Delete("/", CloseTabHandler(d.Tabs))
		r.Get("/context", TabContextHandler(d.Tabs))
		r.Post("/end", EndExamHandler(d.Tabs))

		r.Get("/memorize", MemorizeViewHandler(d.Tabs))
		for _, a := range []string{"select", "reveal", "reset", "next", "prev", "jump"} {
			r.Post("/memorize/"+a, MemorizeActionHandler(d.Tabs, a))
		}
		r.Post("/memorize/{examID}", MountMemorizeHandler(d.Tabs))

		r.Get("/test", TestModeViewHandler(d.Tabs))
		r.Delete("/test", UnmountTestModeHandler(d.Tabs))
		for _, a := range []string{"select", "next", "prev", "jump"} {
			r.Post("/test/"+a, TestModeActionHandler(d.Tabs, a))
		}
		r.Post("/test/{examID}", MountTestModeHandler(d.Tabs))
	})

	if d.History != nil {
		r.With(authmw.JWTMiddleware(d.Auth)).Get("/me/submissions", MySubmissionsHandler(d.History))
	}
	return r
}

// forwardBearer passes the caller's login token on to exam API calls.
func forwardBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := authmw.TokenFromContext(r.Context()); tok != "" {
			r = r.WithContext(examapi.WithBearer(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request through zap.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
