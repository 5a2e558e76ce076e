package services

import (
	"sort"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// candidate is a hydrated chunk with its normalised sub-scores.
type candidate struct {
	chunk    domain.Chunk
	lexical  float64
	semantic float64
	score    float64
}

// byTop scales BM25 scores by the best score in the set.
func byTop(hits []driven.SearchHit) map[string]float64 {
	scores := make(map[string]float64, len(hits))
	var top float64
	for _, h := range hits {
		top = max(top, h.Score)
	}
	for _, h := range hits {
		if top > 0 {
			scores[h.ChunkID] = h.Score / top
		} else {
			scores[h.ChunkID] = 0
		}
	}
	return scores
}

// cosineToUnit maps raw cosine similarity from [-1,1] onto [0,1].
func cosineToUnit(hits []driven.VectorHit) map[string]float64 {
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.ChunkID] = (h.Similarity + 1) / 2
	}
	return scores
}

// minMax rescales scores onto [0,1] within their own pool.
// A pool whose scores are all equal, including a pool of one, maps to 1.
func minMax(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		lo = min(lo, s)
		hi = max(hi, s)
	}

	out := make(map[string]float64, len(scores))
	for id, s := range scores {
		if hi == lo {
			out[id] = 1
		} else {
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}

type fusedScore struct {
	lexical  float64
	semantic float64
	score    float64
}

// fuse combines two normalised pools as alpha*lexical + (1-alpha)*semantic.
// A chunk present in only one pool gets 0 for the other side.
func fuse(lexical, semantic map[string]float64, alpha float64) map[string]fusedScore {
	out := make(map[string]fusedScore, len(lexical)+len(semantic))
	for id, l := range lexical {
		s := semantic[id]
		out[id] = fusedScore{lexical: l, semantic: s, score: alpha*l + (1-alpha)*s}
	}
	for id, s := range semantic {
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = fusedScore{semantic: s, score: (1 - alpha) * s}
	}
	return out
}

// rank orders candidates best first: fused score, then semantic
// sub-score, then insertion order.
func rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.semantic != b.semantic {
			return a.semantic > b.semantic
		}
		return a.chunk.Seq < b.chunk.Seq
	})
}

// capPerDocument keeps at most limit results per document among the top k
// of a ranked list. When the available documents cannot fill k slots
// under the cap, the skipped results back-fill in rank order.
func capPerDocument(ranked []candidate, k, limit int) []candidate {
	if k <= 0 || len(ranked) == 0 {
		return nil
	}

	distinct := make(map[string]struct{})
	for _, c := range ranked {
		distinct[c.chunk.DocumentID] = struct{}{}
	}
	relax := len(distinct)*limit < k

	kept := make([]bool, len(ranked))
	perDoc := make(map[string]int)
	taken := 0
	for i, c := range ranked {
		if taken == k {
			break
		}
		if perDoc[c.chunk.DocumentID] >= limit {
			continue
		}
		perDoc[c.chunk.DocumentID]++
		kept[i] = true
		taken++
	}

	if relax {
		for i := range ranked {
			if taken == k {
				break
			}
			if !kept[i] {
				kept[i] = true
				taken++
			}
		}
	}

	out := make([]candidate, 0, taken)
	for i, c := range ranked {
		if kept[i] {
			out = append(out, c)
		}
	}
	return out
}
