// Package chunker splits extracted document text into overlapping passages.
package chunker

import (
	"fmt"
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping bytes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

var (
	pageMarker = regexp.MustCompile(`(?m)^-{3}\s*Page\s+(\d+)\s*-{3}[ \t]*$`)
	heading    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)
	sentence   = regexp.MustCompile(`[.!?]["')\]]?\s`)
)

// Processor splits text into chunks. It is safe for concurrent use.
type Processor struct {
	cfg domain.ChunkingConfig
}

// Option configures the chunker processor.
type Option func(*domain.ChunkingConfig)

// WithConfig replaces the whole chunking configuration.
func WithConfig(cfg domain.ChunkingConfig) Option {
	return func(c *domain.ChunkingConfig) {
		*c = cfg
	}
}

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *domain.ChunkingConfig) {
		c.ChunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *domain.ChunkingConfig) {
		c.ChunkOverlap = overlap
	}
}

// WithTolerance sets how far before the hard limit a boundary hint is accepted.
func WithTolerance(tolerance int) Option {
	return func(c *domain.ChunkingConfig) {
		c.BoundaryTolerance = tolerance
	}
}

// WithBoundaryHints adds caller-supplied preferred split positions.
func WithBoundaryHints(hints ...int) Option {
	return func(c *domain.ChunkingConfig) {
		c.BoundaryHints = append(c.BoundaryHints, hints...)
	}
}

// New creates a chunker. Invalid settings fail with domain.ErrValidation.
func New(opts ...Option) (*Processor, error) {
	cfg := domain.ChunkingConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	return &Processor{cfg: cfg}, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the effective configuration.
func (p *Processor) Config() domain.ChunkingConfig {
	return p.cfg
}

// Chunk splits text into an ordered slice of chunks.
// Text that is empty or only whitespace produces no chunks.
func (p *Processor) Chunk(text string) []domain.Chunk {
	var chunks []domain.Chunk
	for c := range p.Iterate(text) {
		chunks = append(chunks, c)
	}
	return chunks
}

// Iterate yields chunks lazily. The sequence may be ranged over more than once;
// each pass assigns fresh chunk IDs.
func (p *Processor) Iterate(text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		layout := analyse(text, p.cfg.BoundaryHints)
		index := 0
		for start, end := range p.spans(text, layout) {
			chunk := domain.Chunk{
				ID:          uuid.New().String(),
				Index:       index,
				Content:     text[start:end],
				StartOffset: start,
				EndOffset:   end,
				Page:        layout.pageAt(start, end),
				Section:     layout.sectionAt(start),
			}
			if !yield(chunk) {
				return
			}
			index++
		}
	}
}

// spans yields the [start, end) byte range of every chunk.
func (p *Processor) spans(text string, l *layout) iter.Seq2[int, int] {
	size, overlap, tolerance := p.cfg.ChunkSize, p.cfg.ChunkOverlap, p.cfg.Tolerance()
	n := len(text)

	return func(yield func(int, int) bool) {
		start := 0
		for start < n {
			end := n
			if n-start > size {
				limit := runeFloor(text, start+size, start)
				// A cut must leave room for the overlap so the next chunk moves forward.
				lower := start + overlap + 1

				end = -1
				if h, ok := lastInRange(l.structural, max(lower, limit-tolerance), limit); ok {
					end = h
				} else if h, ok := lastInRange(l.sentences, max(lower, limit-tolerance), limit); ok {
					end = h
				} else if h, ok := lastWhitespaceCut(text, lower, limit); ok {
					end = h
				} else {
					end = limit
				}
				if end <= start {
					_, width := utf8.DecodeRuneInString(text[start:])
					end = start + width
				}
			}

			if !yield(start, end) || end >= n {
				return
			}

			next := runeCeil(text, end-overlap)
			if next <= start {
				next = end
			}
			start = next
		}
	}
}

// layout holds the structural features found in a text.
type layout struct {
	structural []int // paragraph breaks, headings, page markers, caller hints
	sentences  []int
	pages      []marker
	headings   []marker
}

type marker struct {
	pos   int
	page  int
	title string
}

func analyse(text string, hints []int) *layout {
	l := &layout{}

	for _, h := range hints {
		if h > 0 && h < len(text) {
			l.structural = append(l.structural, h)
		}
	}
	for i := 0; ; {
		j := strings.Index(text[i:], "\n\n")
		if j < 0 {
			break
		}
		pos := i + j + 2
		l.structural = append(l.structural, pos)
		i = pos - 1
	}
	for _, m := range pageMarker.FindAllStringSubmatchIndex(text, -1) {
		page, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		l.pages = append(l.pages, marker{pos: m[0], page: page})
		l.structural = append(l.structural, m[0])
	}
	for _, m := range heading.FindAllStringSubmatchIndex(text, -1) {
		l.headings = append(l.headings, marker{pos: m[0], title: strings.TrimSpace(text[m[2]:m[3]])})
		l.structural = append(l.structural, m[0])
	}
	for _, m := range sentence.FindAllStringIndex(text, -1) {
		l.sentences = append(l.sentences, m[1])
	}

	l.structural = sortedUnique(l.structural)
	return l
}

// pageAt returns the page of the last marker at or before start,
// else the first marker inside the chunk, else 0.
func (l *layout) pageAt(start, end int) int {
	page := 0
	for _, m := range l.pages {
		if m.pos <= start {
			page = m.page
			continue
		}
		if page == 0 && m.pos < end {
			page = m.page
		}
		break
	}
	return page
}

func (l *layout) sectionAt(start int) string {
	title := ""
	for _, m := range l.headings {
		if m.pos > start {
			break
		}
		title = m.title
	}
	return title
}

// lastInRange returns the largest sorted position within [lo, hi].
func lastInRange(positions []int, lo, hi int) (int, bool) {
	if lo > hi {
		return 0, false
	}
	i := sort.SearchInts(positions, hi+1) - 1
	if i >= 0 && positions[i] >= lo {
		return positions[i], true
	}
	return 0, false
}

// lastWhitespaceCut returns the largest cut in [lo, hi] that directly follows whitespace.
func lastWhitespaceCut(text string, lo, hi int) (int, bool) {
	for i := hi; i >= lo && i > 0; i-- {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) && utf8.RuneStart(text[i]) {
			return i, true
		}
	}
	return 0, false
}

// runeFloor moves pos back to the start of a rune, not before lo.
func runeFloor(text string, pos, lo int) int {
	if pos >= len(text) {
		return len(text)
	}
	for pos > lo && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// runeCeil moves pos forward to the start of a rune.
func runeCeil(text string, pos int) int {
	if pos < 0 {
		return 0
	}
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}

func sortedUnique(xs []int) []int {
	if len(xs) == 0 {
		return nil
	}
	sort.Ints(xs)
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
