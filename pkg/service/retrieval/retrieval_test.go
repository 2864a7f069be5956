package retrieval_test

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/service/normalize"
	"github.com/monfocus/monfocus/pkg/service/retrieval"
)

// fakeEmbedder is a deterministic bag-of-words embedder: each
// normalized token hashes to one dimension. Shared vocabulary between
// two texts yields a higher cosine similarity.
type fakeEmbedder struct {
	normalizer *normalize.Normalizer
	dim        int
	err        error
}

func (f *fakeEmbedder) Dimension() int {
	return f.dim
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	vec := make([]float32, f.dim)
	for _, token := range strings.Fields(f.normalizer.Normalize(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(f.dim)]++
	}
	return vec, nil
}

func newFixture(t *testing.T) (*retrieval.Service, *fakeEmbedder) {
	t.Helper()

	normalizer, err := normalize.New()
	gt.NoError(t, err).Required()

	embedder := &fakeEmbedder{normalizer: normalizer, dim: 64}

	svc, err := retrieval.New(embedder, normalizer)
	gt.NoError(t, err).Required()

	return svc, embedder
}

func embedNote(t *testing.T, embedder *fakeEmbedder, note *model.Note) {
	t.Helper()
	vec, err := embedder.Embed(context.Background(), note.Title+" "+note.Content)
	gt.NoError(t, err).Required()
	note.Embedding = vec
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks semantically related note first", func(t *testing.T) {
		svc, embedder := newFixture(t)

		algebra := &model.Note{
			ID:      "n-algebra",
			Title:   "Algèbre linéaire",
			Content: "<p>Les matrices sont des tableaux de nombres.</p>",
		}
		chemistry := &model.Note{
			ID:      "n-chemistry",
			Title:   "Chimie organique",
			Content: "<p>Les alcanes sont des hydrocarbures.</p>",
		}
		embedNote(t, embedder, algebra)
		embedNote(t, embedder, chemistry)

		results, err := svc.Search(ctx, "matrices", []*model.Note{chemistry, algebra})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Value(t, results[0].ID).Equal(model.NoteID("n-algebra"))
		gt.Bool(t, results[0].Score > results[1].Score).True()
	})

	t.Run("short query returns empty without error", func(t *testing.T) {
		svc, embedder := newFixture(t)

		note := &model.Note{ID: "n-1", Title: "Algèbre", Content: "matrices"}
		embedNote(t, embedder, note)

		for _, query := range []string{"", "ab", "abc"} {
			results, err := svc.Search(ctx, query, []*model.Note{note})
			gt.NoError(t, err).Required()
			gt.Array(t, results).Length(0)
		}
	})

	t.Run("candidates without embedding are excluded", func(t *testing.T) {
		svc, embedder := newFixture(t)

		embedded := &model.Note{ID: "n-1", Title: "Algèbre", Content: "matrices et vecteurs"}
		embedNote(t, embedder, embedded)
		pending := &model.Note{ID: "n-2", Title: "Analyse", Content: "dérivées et limites"}

		results, err := svc.Search(ctx, "matrices", []*model.Note{embedded, pending})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].ID).Equal(model.NoteID("n-1"))
	})

	t.Run("no searchable candidates returns empty", func(t *testing.T) {
		svc, _ := newFixture(t)

		pending := &model.Note{ID: "n-1", Title: "Analyse", Content: "dérivées"}
		results, err := svc.Search(ctx, "matrices", []*model.Note{pending})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)

		results, err = svc.Search(ctx, "matrices", nil)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})

	t.Run("embedder failure is surfaced", func(t *testing.T) {
		svc, embedder := newFixture(t)

		note := &model.Note{ID: "n-1", Title: "Algèbre", Content: "matrices"}
		embedNote(t, embedder, note)
		embedder.err = errors.New("backend down")

		_, err := svc.Search(ctx, "matrices", []*model.Note{note})
		gt.Error(t, err)
	})

	t.Run("preview strips markup and truncates", func(t *testing.T) {
		svc, _ := newFixture(t)

		long := "<p>" + strings.Repeat("a", 150) + "</p>"
		preview := svc.Preview(long)
		gt.Value(t, len([]rune(preview))).Equal(103)
		gt.Bool(t, strings.HasSuffix(preview, "...")).True()
		gt.Bool(t, strings.Contains(preview, "<p>")).False()
	})
}
