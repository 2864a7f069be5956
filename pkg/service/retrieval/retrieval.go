package retrieval

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/service/normalize"
	"github.com/monfocus/monfocus/pkg/service/vectorindex"
)

// MinQueryLength is the minimum-signal gate: shorter queries produce
// noisy embeddings and return an empty result instead of an error.
const MinQueryLength = 4

// previewLength is the number of runes kept from the markup-stripped
// content for result previews.
const previewLength = 100

// Embedder produces fixed-dimension vectors for text. Implemented by
// the embedding service; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Result is one ranked search result
type Result struct {
	ID             model.NoteID `json:"id"`
	Title          string       `json:"title"`
	ContentPreview string       `json:"content_preview"`
	Score          float64      `json:"score"`
}

// Service orchestrates semantic note search: normalize and embed the
// query, build a fresh index over the candidates' stored embeddings,
// rank by cosine similarity. Access control is the caller's
// responsibility: candidates must already be filtered to what the
// requesting principal may read.
type Service struct {
	embedder   Embedder
	normalizer *normalize.Normalizer
}

// New creates a retrieval service
func New(embedder Embedder, normalizer *normalize.Normalizer) (*Service, error) {
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}
	if normalizer == nil {
		return nil, goerr.New("normalizer is required")
	}

	return &Service{
		embedder:   embedder,
		normalizer: normalizer,
	}, nil
}

// Search ranks the candidate notes against the query. Candidates
// without a stored embedding are excluded; they are unsearchable until
// (re)embedded. Queries shorter than MinQueryLength return an empty
// list without error.
func (s *Service) Search(ctx context.Context, query string, candidates []*model.Note) ([]Result, error) {
	if len([]rune(query)) < MinQueryLength {
		return []Result{}, nil
	}

	searchable := make([]*model.Note, 0, len(candidates))
	entries := make([]vectorindex.Entry, 0, len(candidates))
	for _, note := range candidates {
		if !note.HasEmbedding() {
			continue
		}
		searchable = append(searchable, note)
		entries = append(entries, vectorindex.Entry{ID: note.ID, Vector: note.Embedding})
	}
	if len(entries) == 0 {
		return []Result{}, nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed search query")
	}

	index := vectorindex.New(s.embedder.Dimension(), entries)
	hits := index.Search(queryVector, index.Len())

	notesByID := make(map[model.NoteID]*model.Note, len(searchable))
	for _, note := range searchable {
		notesByID[note.ID] = note
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		note := notesByID[hit.ID]
		results = append(results, Result{
			ID:             note.ID,
			Title:          note.Title,
			ContentPreview: s.Preview(note.Content),
			Score:          hit.Score,
		})
	}

	return results, nil
}

// Preview returns the first previewLength runes of the markup-stripped
// content with an ellipsis marker.
func (s *Service) Preview(content string) string {
	stripped := []rune(s.normalizer.StripMarkup(content))
	if len(stripped) > previewLength {
		stripped = stripped[:previewLength]
	}
	return string(stripped) + "..."
}
