package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// NoteID is a UUID-based identifier for Note
type NoteID string

// NewNoteID generates a new UUID v4 NoteID
func NewNoteID() NoteID {
	return NoteID(uuid.New().String())
}

// Note is a rich-text note in a user's workspace. Content is stored as
// HTML produced by the editor. The embedding is recomputed whenever the
// content or any attachment metadata changes; it is nil until the first
// successful embedding and keeps its previous value when the embedding
// backend is unavailable.
type Note struct {
	ID        NoteID
	OwnerID   types.UserID
	CourseID  types.CourseID // empty for personal notes
	Title     string
	Content   string
	Embedding []float32 // nil or exactly EmbeddingDimension
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasEmbedding reports whether the note is searchable
func (n *Note) HasEmbedding() bool {
	return len(n.Embedding) > 0
}

// AttachmentID is a UUID-based identifier for Attachment
type AttachmentID string

// NewAttachmentID generates a new UUID v4 AttachmentID
func NewAttachmentID() AttachmentID {
	return AttachmentID(uuid.New().String())
}

// Attachment is a file reference attached to exactly one note. Only its
// type tag and filename contribute to the note's embedding input, never
// the binary content.
type Attachment struct {
	ID        AttachmentID
	NoteID    NoteID
	FileName  string
	FileType  string
	CreatedAt time.Time
}
