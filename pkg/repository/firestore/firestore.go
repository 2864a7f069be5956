package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
)

// Firestore is the persistent repository backend. Note embeddings are
// stored as firestore.Vector32 so a future FindNearest migration does
// not need a data rewrite.
type Firestore struct {
	client *firestore.Client
	note   *noteRepository
	chat   *chatRepository
}

var _ interfaces.Repository = &Firestore{}

func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	return &Firestore{
		client: client,
		note:   newNoteRepository(client),
		chat:   newChatRepository(client),
	}, nil
}

func (f *Firestore) Note() interfaces.NoteRepository {
	return f.note
}

func (f *Firestore) Chat() interfaces.ChatRepository {
	return f.chat
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
