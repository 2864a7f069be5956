package vectorindex_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/monfocus/monfocus/pkg/service/vectorindex"
)

func TestSearch(t *testing.T) {
	entries := []vectorindex.Entry{
		{ID: "n-1", Vector: []float32{1, 0, 0}},
		{ID: "n-2", Vector: []float32{0, 1, 0}},
		{ID: "n-3", Vector: []float32{0.9, 0.1, 0}},
	}

	t.Run("ranks by cosine similarity descending", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		hits := idx.Search([]float32{1, 0, 0}, 3)

		gt.Array(t, hits).Length(3)
		gt.Value(t, hits[0].ID).Equal("n-1")
		gt.Value(t, hits[1].ID).Equal("n-3")
		gt.Value(t, hits[2].ID).Equal("n-2")

		for i := 1; i < len(hits); i++ {
			gt.Bool(t, hits[i-1].Score >= hits[i].Score).True()
		}
	})

	t.Run("k clamps to entry count", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		hits := idx.Search([]float32{1, 0, 0}, 10)
		gt.Array(t, hits).Length(3)
	})

	t.Run("k limits results", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		hits := idx.Search([]float32{1, 0, 0}, 1)
		gt.Array(t, hits).Length(1)
		gt.Value(t, hits[0].ID).Equal("n-1")
	})

	t.Run("k zero returns empty", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		gt.Array(t, idx.Search([]float32{1, 0, 0}, 0)).Length(0)
	})

	t.Run("empty index returns empty", func(t *testing.T) {
		idx := vectorindex.New(3, nil)
		gt.Array(t, idx.Search([]float32{1, 0, 0}, 5)).Length(0)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		idx := vectorindex.New(2, []vectorindex.Entry{
			{ID: "a", Vector: []float32{2, 0}},
			{ID: "b", Vector: []float32{5, 0}}, // same direction, same cosine
			{ID: "c", Vector: []float32{0, 1}},
		})
		hits := idx.Search([]float32{1, 0}, 3)
		gt.Value(t, hits[0].ID).Equal("a")
		gt.Value(t, hits[1].ID).Equal("b")
		gt.Value(t, hits[2].ID).Equal("c")
	})

	t.Run("identical vectors score one", func(t *testing.T) {
		idx := vectorindex.New(3, []vectorindex.Entry{
			{ID: "a", Vector: []float32{0.3, 0.5, 0.2}},
		})
		hits := idx.Search([]float32{0.3, 0.5, 0.2}, 1)
		gt.Array(t, hits).Length(1)
		gt.Bool(t, math.Abs(hits[0].Score-1.0) < 1e-6).True()
	})

	t.Run("mismatched dimensions are skipped", func(t *testing.T) {
		idx := vectorindex.New(3, []vectorindex.Entry{
			{ID: "ok", Vector: []float32{1, 0, 0}},
			{ID: "bad", Vector: []float32{1, 0}},
		})
		gt.Value(t, idx.Len()).Equal(1)
	})

	t.Run("mismatched query returns empty", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		gt.Array(t, idx.Search([]float32{1, 0}, 3)).Length(0)
	})

	t.Run("zero query vector scores zero", func(t *testing.T) {
		idx := vectorindex.New(3, entries)
		hits := idx.Search([]float32{0, 0, 0}, 3)
		gt.Array(t, hits).Length(3)
		for _, hit := range hits {
			gt.Value(t, hit.Score).Equal(0.0)
		}
	})
}
