package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// noteDoc is the Firestore document representation of model.Note.
// Embedding is stored as firestore.Vector32.
type noteDoc struct {
	ID        model.NoteID       `firestore:"ID"`
	OwnerID   types.UserID       `firestore:"OwnerID"`
	CourseID  types.CourseID     `firestore:"CourseID"`
	Title     string             `firestore:"Title"`
	Content   string             `firestore:"Content"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	UpdatedAt time.Time          `firestore:"UpdatedAt"`
}

func toNoteDoc(n *model.Note) *noteDoc {
	doc := &noteDoc{
		ID:        n.ID,
		OwnerID:   n.OwnerID,
		CourseID:  n.CourseID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if len(n.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(n.Embedding)
	}
	return doc
}

func fromNoteDoc(d *noteDoc) *model.Note {
	n := &model.Note{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		CourseID:  d.CourseID,
		Title:     d.Title,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		n.Embedding = []float32(d.Embedding)
	}
	return n
}

func docToNote(doc *firestore.DocumentSnapshot) (*model.Note, error) {
	var d noteDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromNoteDoc(&d), nil
}

// attachmentDoc is the Firestore document representation of model.Attachment
type attachmentDoc struct {
	ID        model.AttachmentID `firestore:"ID"`
	NoteID    model.NoteID       `firestore:"NoteID"`
	FileName  string             `firestore:"FileName"`
	FileType  string             `firestore:"FileType"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
}

type noteRepository struct {
	client *firestore.Client
}

func newNoteRepository(client *firestore.Client) *noteRepository {
	return &noteRepository{client: client}
}

func (r *noteRepository) notesCollection() *firestore.CollectionRef {
	return r.client.Collection("notes")
}

func (r *noteRepository) attachmentsCollection() *firestore.CollectionRef {
	return r.client.Collection("attachments")
}

func (r *noteRepository) Create(ctx context.Context, note *model.Note) (*model.Note, error) {
	now := time.Now().UTC()
	created := *note
	if created.ID == "" {
		created.ID = model.NewNoteID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	docRef := r.notesCollection().Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toNoteDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create note")
	}

	return &created, nil
}

func (r *noteRepository) Get(ctx context.Context, id model.NoteID) (*model.Note, error) {
	doc, err := r.notesCollection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get note", goerr.V("id", id))
	}

	note, err := docToNote(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal note", goerr.V("id", id))
	}

	return note, nil
}

func (r *noteRepository) Update(ctx context.Context, note *model.Note) (*model.Note, error) {
	docRef := r.notesCollection().Doc(string(note.ID))

	updates := []firestore.Update{
		{Path: "Title", Value: note.Title},
		{Path: "Content", Value: note.Content},
		{Path: "CourseID", Value: note.CourseID},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", note.ID))
		}
		return nil, goerr.Wrap(err, "failed to update note", goerr.V("id", note.ID))
	}

	return r.Get(ctx, note.ID)
}

func (r *noteRepository) UpdateEmbedding(ctx context.Context, id model.NoteID, embedding []float32) error {
	docRef := r.notesCollection().Doc(string(id))

	// Single-field update is atomic on the Firestore side
	updates := []firestore.Update{
		{Path: "Embedding", Value: firestore.Vector32(embedding)},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update note embedding", goerr.V("id", id))
	}

	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id model.NoteID) error {
	doc, err := r.notesCollection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "note not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get note", goerr.V("id", id))
	}

	batch := r.client.Batch()
	batch.Delete(doc.Ref)

	iter := r.attachmentsCollection().Where("NoteID", "==", id).Documents(ctx)
	defer iter.Stop()
	for {
		attachmentDoc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate attachments", goerr.V("noteID", id))
		}
		batch.Delete(attachmentDoc.Ref)
	}

	if _, err := batch.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete note", goerr.V("id", id))
	}

	return nil
}

func (r *noteRepository) ListByOwner(ctx context.Context, ownerID types.UserID) ([]*model.Note, error) {
	iter := r.notesCollection().
		Where("OwnerID", "==", ownerID).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)

	return collectNotes(iter)
}

func (r *noteRepository) ListByCourses(ctx context.Context, courseIDs []types.CourseID) ([]*model.Note, error) {
	if len(courseIDs) == 0 {
		return []*model.Note{}, nil
	}

	// Firestore "in" queries accept at most 30 values; tutoring course
	// sets per teacher stay well below that.
	iter := r.notesCollection().
		Where("CourseID", "in", courseIDs).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)

	return collectNotes(iter)
}

func collectNotes(iter *firestore.DocumentIterator) ([]*model.Note, error) {
	defer iter.Stop()

	var result []*model.Note
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate notes")
		}

		note, err := docToNote(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal note")
		}
		result = append(result, note)
	}

	return result, nil
}

func (r *noteRepository) AddAttachment(ctx context.Context, attachment *model.Attachment) (*model.Attachment, error) {
	if _, err := r.Get(ctx, attachment.NoteID); err != nil {
		return nil, err
	}

	created := *attachment
	if created.ID == "" {
		created.ID = model.NewAttachmentID()
	}
	created.CreatedAt = time.Now().UTC()

	doc := &attachmentDoc{
		ID:        created.ID,
		NoteID:    created.NoteID,
		FileName:  created.FileName,
		FileType:  created.FileType,
		CreatedAt: created.CreatedAt,
	}
	if _, err := r.attachmentsCollection().Doc(string(created.ID)).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create attachment", goerr.V("noteID", created.NoteID))
	}

	return &created, nil
}

func (r *noteRepository) GetAttachment(ctx context.Context, id model.AttachmentID) (*model.Attachment, error) {
	doc, err := r.attachmentsCollection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "attachment not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get attachment", goerr.V("id", id))
	}

	var d attachmentDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal attachment", goerr.V("id", id))
	}

	return &model.Attachment{
		ID:        d.ID,
		NoteID:    d.NoteID,
		FileName:  d.FileName,
		FileType:  d.FileType,
		CreatedAt: d.CreatedAt,
	}, nil
}

func (r *noteRepository) ListAttachments(ctx context.Context, noteID model.NoteID) ([]*model.Attachment, error) {
	iter := r.attachmentsCollection().
		Where("NoteID", "==", noteID).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var result []*model.Attachment
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate attachments", goerr.V("noteID", noteID))
		}

		var d attachmentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal attachment")
		}
		result = append(result, &model.Attachment{
			ID:        d.ID,
			NoteID:    d.NoteID,
			FileName:  d.FileName,
			FileType:  d.FileType,
			CreatedAt: d.CreatedAt,
		})
	}

	return result, nil
}

func (r *noteRepository) DeleteAttachment(ctx context.Context, id model.AttachmentID) error {
	docRef := r.attachmentsCollection().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "attachment not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get attachment", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete attachment", goerr.V("id", id))
	}

	return nil
}
