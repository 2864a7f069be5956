package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/domain/model"
)

type chatRepository struct {
	mu       sync.RWMutex
	sessions map[model.ChatSessionID]*model.ChatSession
	messages map[model.ChatSessionID][]*model.ChatMessage
	nextSeq  map[model.ChatSessionID]int64
}

func newChatRepository() *chatRepository {
	return &chatRepository{
		sessions: make(map[model.ChatSessionID]*model.ChatSession),
		messages: make(map[model.ChatSessionID][]*model.ChatMessage),
		nextSeq:  make(map[model.ChatSessionID]int64),
	}
}

func copySession(s *model.ChatSession) *model.ChatSession {
	copied := *s
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		copied.EndedAt = &endedAt
	}
	return &copied
}

func copyMessage(m *model.ChatMessage) *model.ChatMessage {
	copied := *m
	return &copied
}

func (r *chatRepository) CreateSession(ctx context.Context, session *model.ChatSession) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copySession(session)
	if created.ID == "" {
		created.ID = model.NewChatSessionID()
	}
	if created.StartedAt.IsZero() {
		created.StartedAt = time.Now().UTC()
	}

	r.sessions[created.ID] = created
	return copySession(created), nil
}

func (r *chatRepository) GetSession(ctx context.Context, id model.ChatSessionID) (*model.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("id", id))
	}

	return copySession(session), nil
}

func (r *chatRepository) EndSession(ctx context.Context, id model.ChatSessionID, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("id", id))
	}
	if session.EndedAt != nil {
		return goerr.Wrap(interfaces.ErrSessionEnded, "cannot end session twice", goerr.V("id", id))
	}

	ended := endedAt.UTC()
	session.EndedAt = &ended
	return nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *model.ChatMessage) (*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[message.SessionID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("sessionID", message.SessionID))
	}
	if session.EndedAt != nil {
		return nil, goerr.Wrap(interfaces.ErrSessionEnded, "cannot append to ended session", goerr.V("sessionID", message.SessionID))
	}

	created := copyMessage(message)
	if created.ID == "" {
		created.ID = model.NewChatMessageID()
	}
	created.Seq = r.nextSeq[message.SessionID]
	r.nextSeq[message.SessionID]++
	created.CreatedAt = time.Now().UTC()

	r.messages[message.SessionID] = append(r.messages[message.SessionID], created)
	return copyMessage(created), nil
}

func (r *chatRepository) ListRecentMessages(ctx context.Context, sessionID model.ChatSessionID, limit int) ([]*model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.sessions[sessionID]; !exists {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "chat session not found", goerr.V("id", sessionID))
	}

	stored := r.messages[sessionID]
	result := make([]*model.ChatMessage, 0, len(stored))
	for _, m := range stored {
		result = append(result, copyMessage(m))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}
