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

// sessionDoc is the Firestore document representation of model.ChatSession.
// NextSeq is the allocation counter for message sequence numbers; it is
// only touched inside the AppendMessage transaction.
type sessionDoc struct {
	ID        model.ChatSessionID `firestore:"ID"`
	UserID    types.UserID        `firestore:"UserID"`
	CourseID  types.CourseID      `firestore:"CourseID"`
	StartedAt time.Time           `firestore:"StartedAt"`
	EndedAt   *time.Time          `firestore:"EndedAt"`
	NextSeq   int64               `firestore:"NextSeq"`
}

func fromSessionDoc(d *sessionDoc) *model.ChatSession {
	return &model.ChatSession{
		ID:        d.ID,
		UserID:    d.UserID,
		CourseID:  d.CourseID,
		StartedAt: d.StartedAt,
		EndedAt:   d.EndedAt,
	}
}

// messageDoc is the Firestore document representation of model.ChatMessage
type messageDoc struct {
	ID            model.ChatMessageID `firestore:"ID"`
	SessionID     model.ChatSessionID `firestore:"SessionID"`
	Role          types.MessageRole   `firestore:"Role"`
	Content       string              `firestore:"Content"`
	Seq           int64               `firestore:"Seq"`
	RelatedNoteID model.NoteID        `firestore:"RelatedNoteID"`
	CreatedAt     time.Time           `firestore:"CreatedAt"`
}

func fromMessageDoc(d *messageDoc) *model.ChatMessage {
	return &model.ChatMessage{
		ID:            d.ID,
		SessionID:     d.SessionID,
		Role:          d.Role,
		Content:       d.Content,
		Seq:           d.Seq,
		RelatedNoteID: d.RelatedNoteID,
		CreatedAt:     d.CreatedAt,
	}
}

type chatRepository struct {
	client *firestore.Client
}

func newChatRepository(client *firestore.Client) *chatRepository {
	return &chatRepository{client: client}
}

func (r *chatRepository) sessionsCollection() *firestore.CollectionRef {
	return r.client.Collection("chat_sessions")
}

func (r *chatRepository) messagesCollection(sessionID model.ChatSessionID) *firestore.CollectionRef {
	return r.sessionsCollection().Doc(string(sessionID)).Collection("messages")
}

func (r *chatRepository) CreateSession(ctx context.Context, session *model.ChatSession) (*model.ChatSession, error) {
	created := *session
	if created.ID == "" {
		created.ID = model.NewChatSessionID()
	}
	if created.StartedAt.IsZero() {
		created.StartedAt = time.Now().UTC()
	}

	doc := &sessionDoc{
		ID:        created.ID,
		UserID:    created.UserID,
		CourseID:  created.CourseID,
		StartedAt: created.StartedAt,
		EndedAt:   created.EndedAt,
	}
	if _, err := r.sessionsCollection().Doc(string(created.ID)).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create chat session")
	}

	return &created, nil
}

func (r *chatRepository) GetSession(ctx context.Context, id model.ChatSessionID) (*model.ChatSession, error) {
	doc, err := r.sessionsCollection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get chat session", goerr.V("id", id))
	}

	var d sessionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chat session", goerr.V("id", id))
	}

	return fromSessionDoc(&d), nil
}

func (r *chatRepository) EndSession(ctx context.Context, id model.ChatSessionID, endedAt time.Time) error {
	docRef := r.sessionsCollection().Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get chat session", goerr.V("id", id))
		}

		var d sessionDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal chat session", goerr.V("id", id))
		}
		if d.EndedAt != nil {
			return goerr.Wrap(interfaces.ErrSessionEnded, "cannot end session twice", goerr.V("id", id))
		}

		return tx.Update(docRef, []firestore.Update{
			{Path: "EndedAt", Value: endedAt.UTC()},
		})
	})

	return err
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *model.ChatMessage) (*model.ChatMessage, error) {
	sessionRef := r.sessionsCollection().Doc(string(message.SessionID))

	created := *message
	if created.ID == "" {
		created.ID = model.NewChatMessageID()
	}
	created.CreatedAt = time.Now().UTC()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(sessionRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("sessionID", message.SessionID))
			}
			return goerr.Wrap(err, "failed to get chat session", goerr.V("sessionID", message.SessionID))
		}

		var d sessionDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal chat session", goerr.V("sessionID", message.SessionID))
		}
		if d.EndedAt != nil {
			return goerr.Wrap(interfaces.ErrSessionEnded, "cannot append to ended session", goerr.V("sessionID", message.SessionID))
		}

		created.Seq = d.NextSeq

		messageRef := r.messagesCollection(message.SessionID).Doc(string(created.ID))
		if err := tx.Set(messageRef, &messageDoc{
			ID:            created.ID,
			SessionID:     created.SessionID,
			Role:          created.Role,
			Content:       created.Content,
			Seq:           created.Seq,
			RelatedNoteID: created.RelatedNoteID,
			CreatedAt:     created.CreatedAt,
		}); err != nil {
			return goerr.Wrap(err, "failed to create chat message")
		}

		return tx.Update(sessionRef, []firestore.Update{
			{Path: "NextSeq", Value: d.NextSeq + 1},
		})
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *chatRepository) ListRecentMessages(ctx context.Context, sessionID model.ChatSessionID, limit int) ([]*model.ChatMessage, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := r.messagesCollection(sessionID).OrderBy("Seq", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chat messages", goerr.V("sessionID", sessionID))
		}

		var d messageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chat message")
		}
		result = append(result, fromMessageDoc(&d))
	}

	// Query is newest-first for the limit; callers expect oldest-first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return result, nil
}
