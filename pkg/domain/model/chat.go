package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

// ChatSessionID is a UUID-based identifier for ChatSession
type ChatSessionID string

// NewChatSessionID generates a new UUID v7 ChatSessionID.
// v7 keeps session IDs time-sortable.
func NewChatSessionID() ChatSessionID {
	return ChatSessionID(uuid.Must(uuid.NewV7()).String())
}

// ChatSession groups the messages of one tutoring conversation. A
// session is active until EndedAt is set; ending is terminal and no
// messages may be appended afterwards.
type ChatSession struct {
	ID        ChatSessionID
	UserID    types.UserID
	CourseID  types.CourseID // empty when the chat is not scoped to a course
	StartedAt time.Time
	EndedAt   *time.Time
}

// Active reports whether the session still accepts messages
func (s *ChatSession) Active() bool {
	return s.EndedAt == nil
}

// ChatMessageID is a UUID-based identifier for ChatMessage
type ChatMessageID string

// NewChatMessageID generates a new UUID v4 ChatMessageID
func NewChatMessageID() ChatMessageID {
	return ChatMessageID(uuid.New().String())
}

// ChatMessage is one turn of a chat session. Messages are append-only.
// Seq is a per-session monotonic sequence number assigned by the
// repository so that ordering does not depend on wall-clock resolution.
// RelatedNoteID is a weak reference to the note that grounded an
// assistant reply, kept for citation display only.
type ChatMessage struct {
	ID            ChatMessageID
	SessionID     ChatSessionID
	Role          types.MessageRole
	Content       string
	Seq           int64
	RelatedNoteID NoteID // empty when the reply was not grounded
	CreatedAt     time.Time
}
