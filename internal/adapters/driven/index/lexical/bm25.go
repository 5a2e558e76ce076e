// Package lexical provides an in-memory BM25 inverted index.
//
// One Index holds one tenant's chunks, so document frequencies and average
// lengths are computed from that tenant's corpus alone.
package lexical

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/analysis"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// Standard BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Index is a BM25 inverted index: term -> chunk ID -> term frequency.
type Index struct {
	mu       sync.RWMutex
	k1       float64
	b        float64
	postings map[string]map[string]int
	lengths  map[string]int
	order    map[string]uint64
	terms    map[string][]string // chunk ID -> distinct terms, for removal
	totalLen int
	next     uint64
}

// Option configures the index.
type Option func(*Index)

// WithParameters overrides k1 and b. Non-positive k1 or b outside [0,1] is ignored.
func WithParameters(k1, b float64) Option {
	return func(i *Index) {
		if k1 > 0 {
			i.k1 = k1
		}
		if b >= 0 && b <= 1 {
			i.b = b
		}
	}
}

// New creates an empty index.
func New(opts ...Option) *Index {
	i := &Index{k1: DefaultK1, b: DefaultB}
	for _, opt := range opts {
		opt(i)
	}
	i.reset()
	return i
}

// Index adds chunks. Re-indexing an existing chunk ID replaces it.
func (i *Index) Index(ctx context.Context, chunks []domain.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		i.remove(c.ID)

		tf := analysis.TermFrequencies(c.Content)
		length := 0
		distinct := make([]string, 0, len(tf))
		for term, n := range tf {
			postings, ok := i.postings[term]
			if !ok {
				postings = make(map[string]int)
				i.postings[term] = postings
			}
			postings[c.ID] = n
			length += n
			distinct = append(distinct, term)
		}

		i.lengths[c.ID] = length
		i.terms[c.ID] = distinct
		i.order[c.ID] = i.next
		i.next++
		i.totalLen += length
	}
	return nil
}

// Remove deletes chunks. Unknown IDs are ignored.
func (i *Index) Remove(_ context.Context, chunkIDs []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range chunkIDs {
		i.remove(id)
	}
	return nil
}

func (i *Index) remove(id string) {
	length, ok := i.lengths[id]
	if !ok {
		return
	}
	for _, term := range i.terms[id] {
		postings := i.postings[term]
		delete(postings, id)
		if len(postings) == 0 {
			delete(i.postings, term)
		}
	}
	i.totalLen -= length
	delete(i.lengths, id)
	delete(i.terms, id)
	delete(i.order, id)
}

// Search scores every chunk containing at least one query term.
// A limit of zero or less returns all matches.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := len(i.lengths)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(i.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	seen := make(map[string]struct{})
	for _, term := range analysis.Tokenize(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		postings, ok := i.postings[term]
		if !ok {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for id, tf := range postings {
			f := float64(tf)
			norm := i.k1 * (1 - i.b + i.b*float64(i.lengths[id])/avgLen)
			scores[id] += idf * f * (i.k1 + 1) / (f + norm)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	hits := make([]driven.SearchHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, driven.SearchHit{ChunkID: id, Score: score})
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return i.order[hits[a].ChunkID] < i.order[hits[b].ChunkID]
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.lengths)
}

// Terms returns the number of distinct terms.
func (i *Index) Terms() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.postings)
}

// Reset empties the index.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reset()
}

func (i *Index) reset() {
	i.postings = make(map[string]map[string]int)
	i.lengths = make(map[string]int)
	i.order = make(map[string]uint64)
	i.terms = make(map[string][]string)
	i.totalLen = 0
	i.next = 0
}
