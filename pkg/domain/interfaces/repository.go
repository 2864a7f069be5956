package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Note() NoteRepository
	Chat() ChatRepository

	// Close releases backend resources. The memory backend is a no-op.
	Close() error
}
