package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/monfocus/monfocus/pkg/service/embedding"
	"github.com/monfocus/monfocus/pkg/utils/logging"
)

// NoteUseCase implements the note and attachment lifecycle. Every write
// recomputes the note's embedding synchronously; when the embedding
// backend is unavailable the note is still saved and the previously
// stored vector is kept untouched.
type NoteUseCase struct {
	repo     interfaces.Repository
	embedder Embedder
}

// NoteInput carries the editable fields of a note
type NoteInput struct {
	Title    string
	Content  string
	CourseID types.CourseID
}

func (x *NoteInput) validate(p *model.Principal) error {
	if strings.TrimSpace(x.Title) == "" {
		return goerr.Wrap(ErrInvalidArgument, "title is required")
	}
	if x.CourseID != "" && !p.HasCourse(x.CourseID) {
		return goerr.Wrap(ErrAccessDenied, "course is not available to the user",
			goerr.V("course_id", x.CourseID),
		)
	}
	return nil
}

// Create creates a note owned by the principal and indexes it
func (uc *NoteUseCase) Create(ctx context.Context, p *model.Principal, input *NoteInput) (*model.Note, error) {
	if err := input.validate(p); err != nil {
		return nil, err
	}

	note, err := uc.repo.Note().Create(ctx, &model.Note{
		ID:       model.NewNoteID(),
		OwnerID:  p.UserID,
		CourseID: input.CourseID,
		Title:    input.Title,
		Content:  input.Content,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create note")
	}

	uc.refreshEmbedding(ctx, note, nil)
	return note, nil
}

// Update modifies a note's fields and reindexes it
func (uc *NoteUseCase) Update(ctx context.Context, p *model.Principal, id model.NoteID, input *NoteInput) (*model.Note, error) {
	if err := input.validate(p); err != nil {
		return nil, err
	}

	note, err := uc.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	note.Title = input.Title
	note.Content = input.Content
	note.CourseID = input.CourseID

	updated, err := uc.repo.Note().Update(ctx, note)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update note", goerr.V("note_id", id))
	}

	attachments, err := uc.repo.Note().ListAttachments(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attachments", goerr.V("note_id", id))
	}

	uc.refreshEmbedding(ctx, updated, attachments)
	return updated, nil
}

// Get retrieves a note readable by the principal. Notes outside the
// principal's scope are reported as not found, not as denied.
func (uc *NoteUseCase) Get(ctx context.Context, p *model.Principal, id model.NoteID) (*model.Note, error) {
	note, err := uc.repo.Note().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get note", goerr.V("note_id", id))
	}
	if !p.CanRead(note) {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "note is not readable by the user",
			goerr.V("note_id", id),
		)
	}
	return note, nil
}

// List retrieves the notes in the principal's scope: owned notes for a
// visitor, notes of taught courses for a teacher.
func (uc *NoteUseCase) List(ctx context.Context, p *model.Principal) ([]*model.Note, error) {
	if p.Kind == types.PrincipalTeacher {
		notes, err := uc.repo.Note().ListByCourses(ctx, p.CourseIDs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list course notes")
		}
		return notes, nil
	}

	notes, err := uc.repo.Note().ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notes")
	}
	return notes, nil
}

// ListByCourse retrieves the notes of one course in the principal's scope
func (uc *NoteUseCase) ListByCourse(ctx context.Context, p *model.Principal, courseID types.CourseID) ([]*model.Note, error) {
	if !p.HasCourse(courseID) {
		return nil, goerr.Wrap(ErrAccessDenied, "course is not available to the user",
			goerr.V("course_id", courseID),
		)
	}

	notes, err := uc.repo.Note().ListByCourses(ctx, []types.CourseID{courseID})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list course notes", goerr.V("course_id", courseID))
	}
	return notes, nil
}

// Delete removes a note and its attachments
func (uc *NoteUseCase) Delete(ctx context.Context, p *model.Principal, id model.NoteID) error {
	if _, err := uc.Get(ctx, p, id); err != nil {
		return err
	}
	if err := uc.repo.Note().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete note", goerr.V("note_id", id))
	}
	return nil
}

// AddAttachment records file metadata on a note and reindexes the note
// so the file name becomes searchable
func (uc *NoteUseCase) AddAttachment(ctx context.Context, p *model.Principal, noteID model.NoteID, fileName, fileType string) (*model.Attachment, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, goerr.Wrap(ErrInvalidArgument, "file name is required")
	}

	note, err := uc.Get(ctx, p, noteID)
	if err != nil {
		return nil, err
	}

	attachment, err := uc.repo.Note().AddAttachment(ctx, &model.Attachment{
		ID:       model.NewAttachmentID(),
		NoteID:   noteID,
		FileName: fileName,
		FileType: fileType,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add attachment", goerr.V("note_id", noteID))
	}

	attachments, err := uc.repo.Note().ListAttachments(ctx, noteID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attachments", goerr.V("note_id", noteID))
	}

	uc.refreshEmbedding(ctx, note, attachments)
	return attachment, nil
}

// ListAttachments retrieves the attachments of a readable note
func (uc *NoteUseCase) ListAttachments(ctx context.Context, p *model.Principal, noteID model.NoteID) ([]*model.Attachment, error) {
	if _, err := uc.Get(ctx, p, noteID); err != nil {
		return nil, err
	}

	attachments, err := uc.repo.Note().ListAttachments(ctx, noteID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list attachments", goerr.V("note_id", noteID))
	}
	return attachments, nil
}

// DeleteAttachment removes an attachment and reindexes its note
func (uc *NoteUseCase) DeleteAttachment(ctx context.Context, p *model.Principal, id model.AttachmentID) error {
	attachment, err := uc.repo.Note().GetAttachment(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get attachment", goerr.V("attachment_id", id))
	}

	note, err := uc.Get(ctx, p, attachment.NoteID)
	if err != nil {
		return err
	}

	if err := uc.repo.Note().DeleteAttachment(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete attachment", goerr.V("attachment_id", id))
	}

	attachments, err := uc.repo.Note().ListAttachments(ctx, note.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to list attachments", goerr.V("note_id", note.ID))
	}

	uc.refreshEmbedding(ctx, note, attachments)
	return nil
}

// refreshEmbedding recomputes and stores the note's vector. Failures
// are logged and swallowed: the note stays saved with its previous
// embedding until the next successful write.
func (uc *NoteUseCase) refreshEmbedding(ctx context.Context, note *model.Note, attachments []*model.Attachment) {
	vector, err := uc.embedder.Embed(ctx, embedding.NoteInput(note, attachments))
	if err != nil {
		logging.From(ctx).Warn("note saved but not indexed",
			"note_id", note.ID,
			"error", err,
		)
		return
	}

	if err := uc.repo.Note().UpdateEmbedding(ctx, note.ID, vector); err != nil {
		logging.From(ctx).Warn("failed to store note embedding",
			"note_id", note.ID,
			"error", err,
		)
		return
	}
	note.Embedding = vector
}
