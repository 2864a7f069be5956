package interfaces

import (
	"context"
	"time"

	"github.com/monfocus/monfocus/pkg/domain/model"
)

// ChatRepository defines the interface for ChatSession and ChatMessage
// persistence. Messages are append-only; they are never mutated or
// deleted.
type ChatRepository interface {
	// CreateSession creates a new chat session
	CreateSession(ctx context.Context, session *model.ChatSession) (*model.ChatSession, error)

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, id model.ChatSessionID) (*model.ChatSession, error)

	// EndSession marks the session as ended. Ending is terminal; ending
	// an already-ended session returns ErrSessionEnded.
	EndSession(ctx context.Context, id model.ChatSessionID, endedAt time.Time) error

	// AppendMessage appends a message to a session and assigns its
	// per-session monotonic sequence number.
	AppendMessage(ctx context.Context, message *model.ChatMessage) (*model.ChatMessage, error)

	// ListRecentMessages retrieves the most recent limit messages of a
	// session, ordered oldest to newest. limit <= 0 returns all messages.
	ListRecentMessages(ctx context.Context, sessionID model.ChatSessionID, limit int) ([]*model.ChatMessage, error)
}
