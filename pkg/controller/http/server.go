package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/usecase"
	"github.com/monfocus/monfocus/pkg/utils/errutil"
	"github.com/monfocus/monfocus/pkg/utils/logging"
)

// Server serves the note workspace REST and SSE API
type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	resolver PrincipalResolver
}

type Options func(*Server)

// WithPrincipalResolver replaces the request authentication strategy
func WithPrincipalResolver(resolver PrincipalResolver) Options {
	return func(s *Server) {
		s.resolver = resolver
	}
}

// New creates the HTTP server. Without an explicit resolver requests
// are authenticated from the development headers.
func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		uc:       uc,
		resolver: NewHeaderPrincipalResolver(nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(principalMiddleware(s.resolver))

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler(s.uc))
			r.Post("/session", sessionCreateHandler(s.uc))
			r.Post("/session/end", sessionEndHandler(s.uc))
			r.Get("/session/{sessionID}/messages", sessionMessagesHandler(s.uc))
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/search", searchHandler(s.uc))
			r.Get("/", noteListHandler(s.uc))
			r.Post("/", noteCreateHandler(s.uc))
			r.Get("/{noteID}", noteGetHandler(s.uc))
			r.Put("/{noteID}", noteUpdateHandler(s.uc))
			r.Delete("/{noteID}", noteDeleteHandler(s.uc))
			r.Get("/{noteID}/attachments", attachmentListHandler(s.uc))
			r.Post("/{noteID}/attachments", attachmentCreateHandler(s.uc))
		})

		r.Delete("/attachments/{attachmentID}", attachmentDeleteHandler(s.uc))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// handleError maps use case errors onto HTTP statuses. Access denials
// on reads are reported as not found so the API does not leak record
// existence.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
	case errors.Is(err, usecase.ErrAccessDenied):
		errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
	case errors.Is(err, usecase.ErrInvalidArgument):
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
	case errors.Is(err, interfaces.ErrSessionEnded):
		errutil.HandleHTTP(ctx, w, err, http.StatusConflict)
	default:
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
	}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return goerr.Wrap(usecase.ErrInvalidArgument, "invalid request body",
			goerr.V("cause", err),
		)
	}
	return nil
}
