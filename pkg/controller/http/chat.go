package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/usecase"
	"github.com/monfocus/monfocus/pkg/utils/errutil"
	"github.com/monfocus/monfocus/pkg/utils/logging"
)

type sessionResponse struct {
	SessionID string     `json:"session_id"`
	CourseID  string     `json:"course_id,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func newSessionResponse(session *model.ChatSession) sessionResponse {
	return sessionResponse{
		SessionID: string(session.ID),
		CourseID:  string(session.CourseID),
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
	}
}

// chatHandler streams one conversation turn as server-sent events. The
// session is resolved before the stream opens so request errors stay
// plain JSON; once the first event is written the stream always
// terminates with an end event unless the client goes away.
func chatHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			errutil.HandleHTTP(ctx, w, goerr.New("streaming is not supported"), http.StatusInternalServerError)
			return
		}

		sessionID := model.ChatSessionID(req.SessionID)
		if sessionID == "" {
			session, err := uc.Chat.StartSession(ctx, p, "")
			if err != nil {
				handleError(ctx, w, err)
				return
			}
			sessionID = session.ID
		}

		started := false
		emit := func(event model.ChatEvent) error {
			if !started {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.Header().Set("X-Session-Id", string(sessionID))
				w.WriteHeader(http.StatusOK)
				started = true
			}

			data, err := json.Marshal(event)
			if err != nil {
				return goerr.Wrap(err, "failed to marshal chat event")
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return goerr.Wrap(err, "failed to write chat event")
			}
			flusher.Flush()
			return nil
		}

		if _, err := uc.Chat.SubmitTurn(ctx, p, sessionID, req.Message, emit); err != nil {
			if !started {
				handleError(ctx, w, err)
				return
			}
			logging.From(ctx).Warn("chat stream interrupted",
				"session_id", sessionID,
				"error", err,
			)
		}
	}
}

func sessionCreateHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		CourseID string `json:"course_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req request
		if r.ContentLength > 0 {
			if err := decodeJSON(r, &req); err != nil {
				handleError(ctx, w, err)
				return
			}
		}

		session, err := uc.Chat.StartSession(ctx, p, types.CourseID(req.CourseID))
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusCreated, newSessionResponse(session))
	}
}

func sessionEndHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		SessionID string `json:"session_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(ctx, w, err)
			return
		}
		if req.SessionID == "" {
			handleError(ctx, w, goerr.Wrap(usecase.ErrInvalidArgument, "session_id is required"))
			return
		}

		if err := uc.Chat.EndSession(ctx, p, model.ChatSessionID(req.SessionID)); err != nil {
			handleError(ctx, w, err)
			return
		}

		respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ended"})
	}
}

func sessionMessagesHandler(uc *usecase.UseCases) http.HandlerFunc {
	type messageResponse struct {
		ID            string    `json:"id"`
		Role          string    `json:"role"`
		Content       string    `json:"content"`
		RelatedNoteID string    `json:"related_note_id,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := model.PrincipalFromContext(ctx)
		if !ok {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		sessionID := model.ChatSessionID(chi.URLParam(r, "sessionID"))
		messages, err := uc.Chat.ListMessages(ctx, p, sessionID)
		if err != nil {
			handleError(ctx, w, err)
			return
		}

		resp := make([]messageResponse, len(messages))
		for i, msg := range messages {
			resp[i] = messageResponse{
				ID:            string(msg.ID),
				Role:          msg.Role.String(),
				Content:       msg.Content,
				RelatedNoteID: string(msg.RelatedNoteID),
				CreatedAt:     msg.CreatedAt,
			}
		}
		respondJSON(ctx, w, http.StatusOK, resp)
	}
}
