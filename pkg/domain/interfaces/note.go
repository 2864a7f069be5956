package interfaces

import (
	"context"

	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

// NoteRepository defines the interface for Note and Attachment persistence
type NoteRepository interface {
	// Create creates a new note
	Create(ctx context.Context, note *model.Note) (*model.Note, error)

	// Get retrieves a note by ID
	Get(ctx context.Context, id model.NoteID) (*model.Note, error)

	// Update updates a note's title, content and course association.
	// The stored embedding is preserved; use UpdateEmbedding to replace it.
	Update(ctx context.Context, note *model.Note) (*model.Note, error)

	// UpdateEmbedding atomically replaces the note's embedding vector.
	// Readers observe either the prior or the full new vector, never a
	// partial write.
	UpdateEmbedding(ctx context.Context, id model.NoteID, embedding []float32) error

	// Delete deletes a note and its attachments
	Delete(ctx context.Context, id model.NoteID) error

	// ListByOwner retrieves all notes owned by a user
	ListByOwner(ctx context.Context, ownerID types.UserID) ([]*model.Note, error)

	// ListByCourses retrieves all notes associated with any of the courses
	ListByCourses(ctx context.Context, courseIDs []types.CourseID) ([]*model.Note, error)

	// AddAttachment attaches file metadata to a note
	AddAttachment(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error)

	// GetAttachment retrieves an attachment by ID
	GetAttachment(ctx context.Context, id model.AttachmentID) (*model.Attachment, error)

	// ListAttachments retrieves all attachments of a note
	ListAttachments(ctx context.Context, noteID model.NoteID) ([]*model.Attachment, error)

	// DeleteAttachment removes an attachment
	DeleteAttachment(ctx context.Context, id model.AttachmentID) error
}
