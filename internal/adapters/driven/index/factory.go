// Package index wires the in-memory lexical and vector indices
// behind the driven.IndexFactory port.
package index

import (
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/index/lexical"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/index/vector"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.IndexFactory = Factory{}

// Factory creates per-tenant indices. The zero value uses standard BM25 parameters.
type Factory struct {
	K1 float64
	B  float64
}

// NewLexicalIndex returns an empty BM25 index.
func (f Factory) NewLexicalIndex() driven.LexicalIndex {
	if f.K1 == 0 && f.B == 0 {
		return lexical.New()
	}
	return lexical.New(lexical.WithParameters(f.K1, f.B))
}

// NewVectorIndex returns an empty exact cosine index.
func (f Factory) NewVectorIndex() driven.VectorIndex {
	return vector.New()
}
