package domain

import (
	"fmt"
	"strings"
)

// SearchMode selects which indices answer a query.
type SearchMode string

const (
	// SearchModeLexical uses the BM25 keyword index only.
	SearchModeLexical SearchMode = "lexical"

	// SearchModeSemantic uses the embedding index only.
	SearchModeSemantic SearchMode = "semantic"

	// SearchModeHybrid fuses lexical and semantic scores.
	SearchModeHybrid SearchMode = "hybrid"
)

// AllSearchModes returns all valid search modes.
func AllSearchModes() []SearchMode {
	return []SearchMode{SearchModeLexical, SearchModeSemantic, SearchModeHybrid}
}

// IsValid returns true if the mode is a known search mode.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeLexical, SearchModeSemantic, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mode.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeLexical:
		return "Keyword search (BM25)"
	case SearchModeSemantic:
		return "Semantic search (embeddings)"
	case SearchModeHybrid:
		return "Hybrid search (keyword + embeddings)"
	default:
		return "Unknown mode"
	}
}

// UsesVectors reports whether the mode needs a query embedding.
func (m SearchMode) UsesVectors() bool {
	return m == SearchModeSemantic || m == SearchModeHybrid
}

// ParseSearchMode converts user input to a SearchMode.
// An empty string selects hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SearchModeHybrid, nil
	}
	m := SearchMode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown search mode %q", ErrValidation, s)
	}
	return m, nil
}

// QueryOptions configures a query.
type QueryOptions struct {
	// Mode selects the indices used. Empty means hybrid.
	Mode SearchMode

	// K is the maximum number of results. Zero means the configured default.
	K int
}

// Citation locates a result inside its source document.
type Citation struct {
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
	Page         int    `json:"page,omitempty"`
	Section      string `json:"section,omitempty"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
}

// String formats the citation for display, e.g. "policy.txt p.2 [120:980]".
func (c Citation) String() string {
	var b strings.Builder
	b.WriteString(c.DocumentName)
	if c.Page > 0 {
		fmt.Fprintf(&b, " p.%d", c.Page)
	}
	if c.Section != "" {
		fmt.Fprintf(&b, " §%s", c.Section)
	}
	fmt.Fprintf(&b, " [%d:%d]", c.StartOffset, c.EndOffset)
	return b.String()
}

// QueryResult is a single ranked passage.
type QueryResult struct {
	// Chunk is the matched passage.
	Chunk Chunk `json:"-"`

	// Content duplicates Chunk.Content for serialisation.
	Content string `json:"content"`

	// Score is the fused relevance score in [0,1].
	Score float64 `json:"score"`

	// LexicalScore is the normalised keyword sub-score.
	LexicalScore float64 `json:"lexical_score"`

	// SemanticScore is the normalised embedding sub-score.
	SemanticScore float64 `json:"semantic_score"`

	// Citation locates the passage in its document.
	Citation Citation `json:"citation"`
}

// QueryResponse is the outcome of a query.
type QueryResponse struct {
	// Mode is the mode actually used after any degradation.
	Mode SearchMode `json:"mode"`

	// Results are ranked best first.
	Results []QueryResult `json:"results"`

	// Warnings describe degradations, e.g. a semantic search that fell back to keywords.
	Warnings []string `json:"warnings,omitempty"`
}

// Answer is a generated response grounded in retrieved passages.
type Answer struct {
	Text    string        `json:"text"`
	Sources []QueryResult `json:"sources"`
}
