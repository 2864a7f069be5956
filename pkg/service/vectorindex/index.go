package vectorindex

import (
	"math"
	"sort"

	"github.com/monfocus/monfocus/pkg/domain/model"
)

// Entry is one (note, vector) pair fed to the index
type Entry struct {
	ID     model.NoteID
	Vector []float32
}

// Hit is one ranked search result. Score is the inner product of the
// L2-normalized vectors, i.e. cosine similarity in [-1, 1].
type Hit struct {
	ID    model.NoteID
	Score float64
}

// Index is an ephemeral flat inner-product index over note embeddings.
// It is rebuilt per search request from the current snapshot of stored
// vectors and is never shared across requests, so it needs no locking.
type Index struct {
	dimension int
	entries   []Entry
}

// New builds an index over the entries. Vectors are copied and
// L2-normalized; entries whose dimension does not match are skipped.
func New(dimension int, entries []Entry) *Index {
	idx := &Index{
		dimension: dimension,
		entries:   make([]Entry, 0, len(entries)),
	}

	for _, entry := range entries {
		if len(entry.Vector) != dimension {
			continue
		}
		idx.entries = append(idx.entries, Entry{
			ID:     entry.ID,
			Vector: l2Normalize(entry.Vector),
		})
	}

	return idx
}

// Len returns the number of indexed entries
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Search returns the k most similar entries to the query, ranked by
// strictly non-increasing score. Ties keep insertion order so results
// stay deterministic. k is clamped to the number of entries; k <= 0 or
// an empty index yields an empty list.
func (idx *Index) Search(query []float32, k int) []Hit {
	if k <= 0 || len(idx.entries) == 0 || len(query) != idx.dimension {
		return []Hit{}
	}
	if k > len(idx.entries) {
		k = len(idx.entries)
	}

	normalized := l2Normalize(query)

	hits := make([]Hit, 0, len(idx.entries))
	for _, entry := range idx.entries {
		hits = append(hits, Hit{
			ID:    entry.ID,
			Score: innerProduct(normalized, entry.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	return hits[:k]
}

// l2Normalize returns a unit-length copy of the vector. Zero vectors
// are returned as zero copies.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	normalized := make([]float32, len(v))
	norm := math.Sqrt(sum)
	if norm == 0 {
		return normalized
	}

	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

func innerProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
