package usecase

import (
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
	"github.com/monfocus/monfocus/pkg/utils/errutil"
	"github.com/monfocus/monfocus/pkg/utils/logging"
)

//go:embed prompt/tutor_system.md
var tutorSystemPromptRaw string

var tutorSystemPrompt = template.Must(
	template.New("tutor_system").Parse(tutorSystemPromptRaw),
)

const (
	// retrievalTopK is the number of retrieved notes injected into the
	// tutor prompt as grounding context
	retrievalTopK = 3

	// historyLimit is the number of prior messages replayed into the
	// prompt, not counting the message being answered
	historyLimit = 5

	// fallbackResponse is sent as a single chunk whenever generation
	// fails, times out or produces no text
	fallbackResponse = "Désolé, je n'ai pas pu générer une réponse appropriée. Pouvez-vous reformuler votre question ?"
)

// EmitFunc delivers one stream event to the client. A non-nil error
// means the client is gone and generation should stop.
type EmitFunc func(event model.ChatEvent) error

// ChatUseCase implements the retrieval-augmented tutoring conversation.
// A turn persists the user message first, grounds the prompt on the
// top retrieved notes, streams the generated reply chunk by chunk and
// persists the assistant message only after a successful generation.
type ChatUseCase struct {
	repo              interfaces.Repository
	search            *SearchUseCase
	llmClient         gollem.LLMClient
	generationTimeout time.Duration
}

// StartSession opens a new chat session for the principal
func (uc *ChatUseCase) StartSession(ctx context.Context, p *model.Principal, courseID types.CourseID) (*model.ChatSession, error) {
	if courseID != "" && !p.HasCourse(courseID) {
		return nil, goerr.Wrap(ErrAccessDenied, "course is not available to the user",
			goerr.V("course_id", courseID),
		)
	}

	session, err := uc.repo.Chat().CreateSession(ctx, &model.ChatSession{
		ID:        model.NewChatSessionID(),
		UserID:    p.UserID,
		CourseID:  courseID,
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat session")
	}
	return session, nil
}

// GetSession retrieves a session owned by the principal. Sessions of
// other users are reported as not found.
func (uc *ChatUseCase) GetSession(ctx context.Context, p *model.Principal, id model.ChatSessionID) (*model.ChatSession, error) {
	session, err := uc.repo.Chat().GetSession(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get chat session", goerr.V("session_id", id))
	}
	if session.UserID != p.UserID {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "chat session belongs to another user",
			goerr.V("session_id", id),
		)
	}
	return session, nil
}

// EndSession terminates a session. Ending is one way; a second call
// returns ErrSessionEnded.
func (uc *ChatUseCase) EndSession(ctx context.Context, p *model.Principal, id model.ChatSessionID) error {
	session, err := uc.GetSession(ctx, p, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Chat().EndSession(ctx, session.ID, time.Now()); err != nil {
		return goerr.Wrap(err, "failed to end chat session", goerr.V("session_id", id))
	}
	return nil
}

// ListMessages retrieves the full transcript of an owned session,
// ordered oldest to newest
func (uc *ChatUseCase) ListMessages(ctx context.Context, p *model.Principal, id model.ChatSessionID) ([]*model.ChatMessage, error) {
	session, err := uc.GetSession(ctx, p, id)
	if err != nil {
		return nil, err
	}

	messages, err := uc.repo.Chat().ListRecentMessages(ctx, session.ID, 0)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chat messages", goerr.V("session_id", id))
	}
	return messages, nil
}

// SubmitTurn runs one conversation turn. An empty sessionID opens a
// fresh session. Errors returned before the first emit call are plain
// request errors; once streaming has started, generation failures are
// absorbed into the fallback chunk and the stream always terminates
// with an end event unless the client disconnects.
func (uc *ChatUseCase) SubmitTurn(ctx context.Context, p *model.Principal, sessionID model.ChatSessionID, message string, emit EmitFunc) (*model.ChatSession, error) {
	if strings.TrimSpace(message) == "" {
		return nil, goerr.Wrap(ErrInvalidArgument, "message is required")
	}

	session, err := uc.resolveSession(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, goerr.Wrap(interfaces.ErrSessionEnded, "chat session already ended",
			goerr.V("session_id", session.ID),
		)
	}

	// The user message is durable even if everything after this fails
	if _, err := uc.repo.Chat().AppendMessage(ctx, &model.ChatMessage{
		ID:        model.NewChatMessageID(),
		SessionID: session.ID,
		Role:      types.RoleUser,
		Content:   message,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to persist user message",
			goerr.V("session_id", session.ID),
		)
	}

	results := uc.retrieveContext(ctx, p, message)
	history := uc.recentHistory(ctx, session.ID)

	reply, genErr := uc.generate(ctx, message, results, history, emit)
	if genErr != nil {
		if clientGone(ctx, genErr) {
			// Abandoned turn: nothing more to emit, nothing to persist
			return session, goerr.Wrap(genErr, "chat stream aborted by client",
				goerr.V("session_id", session.ID),
			)
		}

		errutil.Handle(ctx,
			goerr.Wrap(genErr, "generating tutor reply", goerr.V("session_id", session.ID)),
			"chat generation failed")
		if err := emit(model.NewChunkEvent(fallbackResponse)); err != nil {
			return session, goerr.Wrap(err, "failed to emit fallback chunk")
		}
		if err := emit(model.NewEndEvent()); err != nil {
			return session, goerr.Wrap(err, "failed to emit end event")
		}
		return session, nil
	}

	var relatedNoteID model.NoteID
	if len(results) > 0 {
		relatedNoteID = results[0].ID
	}

	if _, err := uc.repo.Chat().AppendMessage(ctx, &model.ChatMessage{
		ID:            model.NewChatMessageID(),
		SessionID:     session.ID,
		Role:          types.RoleAssistant,
		Content:       reply,
		RelatedNoteID: relatedNoteID,
	}); err != nil {
		// The client already received the reply; losing the record is
		// logged, not surfaced
		errutil.Handle(ctx,
			goerr.Wrap(err, "appending assistant message", goerr.V("session_id", session.ID)),
			"failed to persist assistant message")
	}

	if err := emit(model.NewSourceEvent(relatedNoteID)); err != nil {
		return session, goerr.Wrap(err, "failed to emit source event")
	}
	if err := emit(model.NewEndEvent()); err != nil {
		return session, goerr.Wrap(err, "failed to emit end event")
	}
	return session, nil
}

func (uc *ChatUseCase) resolveSession(ctx context.Context, p *model.Principal, sessionID model.ChatSessionID) (*model.ChatSession, error) {
	if sessionID == "" {
		return uc.StartSession(ctx, p, "")
	}
	return uc.GetSession(ctx, p, sessionID)
}

// retrieveContext looks up grounding notes for the prompt. Retrieval
// failures degrade to an ungrounded turn instead of failing it.
func (uc *ChatUseCase) retrieveContext(ctx context.Context, p *model.Principal, message string) []retrieval.Result {
	results, err := uc.search.Search(ctx, p, message)
	if err != nil {
		logging.From(ctx).Warn("context retrieval failed, answering without notes",
			"error", err,
		)
		return nil
	}
	if len(results) > retrievalTopK {
		results = results[:retrievalTopK]
	}
	return results
}

// recentHistory loads the prior messages of the session, excluding the
// user message persisted for the current turn
func (uc *ChatUseCase) recentHistory(ctx context.Context, sessionID model.ChatSessionID) []*model.ChatMessage {
	messages, err := uc.repo.Chat().ListRecentMessages(ctx, sessionID, historyLimit+1)
	if err != nil {
		logging.From(ctx).Warn("failed to load chat history",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}
	if len(messages) > 0 {
		messages = messages[:len(messages)-1]
	}
	return messages
}

type tutorPromptData struct {
	Context string
	History []*model.ChatMessage
}

// renderTutorPrompt assembles the system prompt: the French tutoring
// persona, the retrieved note excerpts and the replayed history
func renderTutorPrompt(results []retrieval.Result, history []*model.ChatMessage) (string, error) {
	var contextText strings.Builder
	for _, r := range results {
		if contextText.Len() > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(r.Title)
		contextText.WriteString(" : ")
		contextText.WriteString(r.ContentPreview)
	}

	var prompt strings.Builder
	if err := tutorSystemPrompt.Execute(&prompt, &tutorPromptData{
		Context: contextText.String(),
		History: history,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render tutor prompt")
	}
	return prompt.String(), nil
}

// generate streams the model reply through emit and returns the full
// text. Any returned error other than a client disconnect means the
// caller should fall back.
func (uc *ChatUseCase) generate(ctx context.Context, message string, results []retrieval.Result, history []*model.ChatMessage, emit EmitFunc) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, uc.generationTimeout)
	defer cancel()

	prompt, err := renderTutorPrompt(results, history)
	if err != nil {
		return "", err
	}

	llmSession, err := uc.llmClient.NewSession(genCtx,
		gollem.WithSessionSystemPrompt(prompt),
	)
	if err != nil {
		return "", goerr.Wrap(ErrGenerationFailure, "failed to open generation session",
			goerr.V("cause", err),
		)
	}

	stream, err := llmSession.GenerateStream(genCtx, gollem.Text(message))
	if err != nil {
		return "", goerr.Wrap(ErrGenerationFailure, "failed to start generation stream",
			goerr.V("cause", err),
		)
	}

	var reply strings.Builder
	for resp := range stream {
		if resp == nil {
			continue
		}
		if resp.Error != nil {
			return "", goerr.Wrap(ErrGenerationFailure, "generation stream failed",
				goerr.V("cause", resp.Error),
			)
		}
		for _, text := range resp.Texts {
			if text == "" {
				continue
			}
			reply.WriteString(text)
			if err := emit(model.NewChunkEvent(text)); err != nil {
				return "", goerr.Wrap(err, "failed to emit chunk")
			}
		}
	}

	if ctx.Err() != nil {
		return "", goerr.Wrap(ctx.Err(), "chat turn canceled")
	}
	if genCtx.Err() != nil {
		return "", goerr.Wrap(ErrGenerationFailure, "generation timed out",
			goerr.V("cause", genCtx.Err()),
		)
	}
	if reply.Len() == 0 {
		return "", goerr.Wrap(ErrGenerationFailure, "generation produced no text")
	}
	return reply.String(), nil
}

// clientGone reports whether the error stems from the client side, in
// which case the fallback must not be emitted
func clientGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && err != nil
}
