package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

type noteRepository struct {
	mu          sync.RWMutex
	notes       map[model.NoteID]*model.Note
	attachments map[model.AttachmentID]*model.Attachment
}

func newNoteRepository() *noteRepository {
	return &noteRepository{
		notes:       make(map[model.NoteID]*model.Note),
		attachments: make(map[model.AttachmentID]*model.Attachment),
	}
}

// copyNote creates a deep copy of a note
func copyNote(n *model.Note) *model.Note {
	copied := &model.Note{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		CourseID:  n.CourseID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}

	if n.Embedding != nil {
		copied.Embedding = make([]float32, len(n.Embedding))
		copy(copied.Embedding, n.Embedding)
	}

	return copied
}

func copyAttachment(a *model.Attachment) *model.Attachment {
	copied := *a
	return &copied
}

func (r *noteRepository) Create(ctx context.Context, note *model.Note) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyNote(note)
	if created.ID == "" {
		created.ID = model.NewNoteID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.notes[created.ID] = created
	return copyNote(created), nil
}

func (r *noteRepository) Get(ctx context.Context, id model.NoteID) (*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, exists := r.notes[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
	}

	return copyNote(note), nil
}

func (r *noteRepository) Update(ctx context.Context, note *model.Note) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.notes[note.ID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", note.ID))
	}

	// Embedding is preserved; UpdateEmbedding is the only writer
	stored.Title = note.Title
	stored.Content = note.Content
	stored.CourseID = note.CourseID
	stored.UpdatedAt = time.Now().UTC()

	return copyNote(stored), nil
}

func (r *noteRepository) UpdateEmbedding(ctx context.Context, id model.NoteID, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.notes[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
	}

	replaced := make([]float32, len(embedding))
	copy(replaced, embedding)
	stored.Embedding = replaced

	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id model.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[id]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
	}

	delete(r.notes, id)
	for attachmentID, attachment := range r.attachments {
		if attachment.NoteID == id {
			delete(r.attachments, attachmentID)
		}
	}

	return nil
}

func (r *noteRepository) ListByOwner(ctx context.Context, ownerID types.UserID) ([]*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Note
	for _, note := range r.notes {
		if note.OwnerID == ownerID {
			result = append(result, copyNote(note))
		}
	}

	sortNotesByCreatedAt(result)
	return result, nil
}

func (r *noteRepository) ListByCourses(ctx context.Context, courseIDs []types.CourseID) ([]*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courseIDSet := make(map[types.CourseID]bool, len(courseIDs))
	for _, id := range courseIDs {
		courseIDSet[id] = true
	}

	var result []*model.Note
	for _, note := range r.notes {
		if note.CourseID != "" && courseIDSet[note.CourseID] {
			result = append(result, copyNote(note))
		}
	}

	sortNotesByCreatedAt(result)
	return result, nil
}

// sortNotesByCreatedAt keeps list results deterministic. ID is the
// tie-break for notes created within the same clock tick.
func sortNotesByCreatedAt(notes []*model.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
}

func (r *noteRepository) AddAttachment(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notes[attachment.NoteID]; !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("noteID", attachment.NoteID))
	}

	created := copyAttachment(attachment)
	if created.ID == "" {
		created.ID = model.NewAttachmentID()
	}
	created.CreatedAt = time.Now().UTC()

	r.attachments[created.ID] = created
	return copyAttachment(created), nil
}

func (r *noteRepository) GetAttachment(ctx context.Context, id model.AttachmentID) (*model.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "attachment not found", goerr.V("id", id))
	}

	return copyAttachment(attachment), nil
}

func (r *noteRepository) ListAttachments(ctx context.Context, noteID model.NoteID) ([]*model.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Attachment
	for _, attachment := range r.attachments {
		if attachment.NoteID == noteID {
			result = append(result, copyAttachment(attachment))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *noteRepository) DeleteAttachment(ctx context.Context, id model.AttachmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attachments[id]; !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "attachment not found", goerr.V("id", id))
	}

	delete(r.attachments, id)
	return nil
}
