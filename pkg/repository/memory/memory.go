package memory

import (
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
)

// Repository is an in-memory implementation of interfaces.Repository,
// used for development and tests.
type Repository struct {
	note *noteRepository
	chat *chatRepository
}

var _ interfaces.Repository = &Repository{}

func New() *Repository {
	return &Repository{
		note: newNoteRepository(),
		chat: newChatRepository(),
	}
}

func (r *Repository) Note() interfaces.NoteRepository {
	return r.note
}

func (r *Repository) Chat() interfaces.ChatRepository {
	return r.chat
}

func (r *Repository) Close() error {
	return nil
}
