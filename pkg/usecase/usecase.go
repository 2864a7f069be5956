package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/monfocus/monfocus/pkg/domain/interfaces"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
)

// Embedder turns note or query text into a vector of a fixed dimension
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// UseCases bundles the application use cases of the note workspace
type UseCases struct {
	Note   *NoteUseCase
	Search *SearchUseCase
	Chat   *ChatUseCase
}

type config struct {
	generationTimeout time.Duration
}

// Option configures UseCases
type Option func(*config)

// WithGenerationTimeout bounds a single chat generation call. The
// default is 60 seconds; hitting the deadline degrades to the fallback
// response instead of failing the stream.
func WithGenerationTimeout(d time.Duration) Option {
	return func(c *config) {
		c.generationTimeout = d
	}
}

// New creates the use case set
func New(repo interfaces.Repository, embedder Embedder, retriever *retrieval.Service, llmClient gollem.LLMClient, opts ...Option) *UseCases {
	cfg := &config{
		generationTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	search := &SearchUseCase{
		repo:      repo,
		retriever: retriever,
	}

	return &UseCases{
		Note: &NoteUseCase{
			repo:     repo,
			embedder: embedder,
		},
		Search: search,
		Chat: &ChatUseCase{
			repo:              repo,
			search:            search,
			llmClient:         llmClient,
			generationTimeout: cfg.generationTimeout,
		},
	}
}
