package embedding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/service/embedding"
	"github.com/monfocus/monfocus/pkg/service/normalize"
)

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, errors.New("not implemented")
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	vec := make([]float64, dimension)
	vec[0] = 1
	return [][]float64{vec}, nil
}

func newNormalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	normalizer, err := normalize.New()
	gt.NoError(t, err).Required()
	return normalizer
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("passes normalized text to the backend", func(t *testing.T) {
		var captured []string
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				captured = input
				vec := make([]float64, dimension)
				return [][]float64{vec}, nil
			},
		}

		svc, err := embedding.New(client, newNormalizer(t))
		gt.NoError(t, err).Required()

		vec, err := svc.Embed(ctx, "<p>Les MATRICES</p>")
		gt.NoError(t, err).Required()
		gt.Array(t, vec).Length(model.EmbeddingDimension)
		gt.Array(t, captured).Length(1)
		gt.Value(t, captured[0]).Equal("matrices")
	})

	t.Run("backend error wraps ErrUnavailable", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return nil, errors.New("connection refused")
			},
		}

		svc, err := embedding.New(client, newNormalizer(t))
		gt.NoError(t, err).Required()

		_, err = svc.Embed(ctx, "matrices")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, embedding.ErrUnavailable)).True()
	})

	t.Run("malformed output wraps ErrUnavailable", func(t *testing.T) {
		client := &mockLLMClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return [][]float64{{1, 2, 3}}, nil // wrong dimension
			},
		}

		svc, err := embedding.New(client, newNormalizer(t))
		gt.NoError(t, err).Required()

		_, err = svc.Embed(ctx, "matrices")
		gt.Bool(t, errors.Is(err, embedding.ErrUnavailable)).True()
	})

	t.Run("requires client and normalizer", func(t *testing.T) {
		_, err := embedding.New(nil, newNormalizer(t))
		gt.Error(t, err)

		_, err = embedding.New(&mockLLMClient{}, nil)
		gt.Error(t, err)
	})
}

func TestNoteInput(t *testing.T) {
	note := &model.Note{
		Title:   "Algèbre linéaire",
		Content: "<p>Les matrices</p>",
	}
	attachments := []*model.Attachment{
		{FileType: "pdf", FileName: "cours-matrices.pdf"},
		{FileType: "image", FileName: "schema.png"},
	}

	got := embedding.NoteInput(note, attachments)
	gt.Value(t, got).Equal("Algèbre linéaire <p>Les matrices</p> pdf cours-matrices.pdf image schema.png")
}
