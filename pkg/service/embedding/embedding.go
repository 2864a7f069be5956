package embedding

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/service/normalize"
)

// ErrUnavailable is returned when the embedding backend is unreachable
// or returns malformed output. Callers keep the previously stored
// embedding untouched when they see this error.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Service maps note text to fixed-dimension dense vectors through the
// configured LLM backend. Text is normalized before embedding.
type Service struct {
	llmClient  gollem.LLMClient
	normalizer *normalize.Normalizer
	dimension  int
}

// Option is a functional option for Service configuration
type Option func(*Service)

// WithDimension overrides the embedding dimension. The default matches
// model.EmbeddingDimension.
func WithDimension(dimension int) Option {
	return func(s *Service) {
		s.dimension = dimension
	}
}

// New creates an embedding service backed by the provided LLM client
func New(llmClient gollem.LLMClient, normalizer *normalize.Normalizer, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	if normalizer == nil {
		return nil, goerr.New("normalizer is required")
	}

	s := &Service{
		llmClient:  llmClient,
		normalizer: normalizer,
		dimension:  model.EmbeddingDimension,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Dimension returns the output dimensionality of the configured backend
func (s *Service) Dimension() int {
	return s.dimension
}

// Embed normalizes text and generates its embedding vector. Backend
// failures and malformed responses wrap ErrUnavailable.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := s.normalizer.Normalize(text)

	embeddings, err := s.llmClient.GenerateEmbedding(ctx, s.dimension, []string{normalized})
	if err != nil {
		return nil, goerr.Wrap(ErrUnavailable, "failed to generate embedding", goerr.V("cause", err))
	}
	if len(embeddings) == 0 || len(embeddings[0]) != s.dimension {
		return nil, goerr.Wrap(ErrUnavailable, "embedding backend returned malformed output",
			goerr.V("count", len(embeddings)),
			goerr.V("dimension", s.dimension),
		)
	}

	result := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		result[i] = float32(v)
	}

	return result, nil
}

// NoteInput builds the aggregate text embedded for a note: title, body
// content and the type tag and filename of each attachment. Attachment
// binary content is never embedded.
func NoteInput(note *model.Note, attachments []*model.Attachment) string {
	var sb strings.Builder
	sb.WriteString(note.Title)
	sb.WriteString(" ")
	sb.WriteString(note.Content)
	for _, attachment := range attachments {
		sb.WriteString(" ")
		sb.WriteString(attachment.FileType)
		sb.WriteString(" ")
		sb.WriteString(attachment.FileName)
	}
	return sb.String()
}
