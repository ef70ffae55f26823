// Package similarity provides a simple, deterministic, concurrency-safe
// in-memory ranker over contribution texts. It is intentionally small and
// dependency-free, but engineered with production-grade ergonomics:
//
//   - No logging in the library (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Immutable, read-only ranker after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// The exact-duplicate case is handled upstream by text normalization and the
// ledger's unique index; this package catches the near misses, surfacing
// candidates that differ by a word or two so reviewers can compare them.
//
// Scoring uses Jaccard similarity between the query token set and each
// candidate's token set: score = |Q ∩ C| / |Q ∪ C|.
package similarity

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Candidate is one text to rank, identified by the caller's stable ID.
type Candidate struct {
	ID   string
	Text string
}

// Match is a ranked candidate with its similarity score in (0, 1].
type Match struct {
	ID    string
	Text  string
	Score float64
}

// Ranker is the minimal interface implemented by all similarity rankers.
type Ranker interface {
	TopK(query string, k int) []Match
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		stopwords: nil,
		maxDocs:   0,
	}
}

// WithStopwords excludes the given words from tokenization. Matching is
// case-insensitive; empty entries are ignored.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps how many candidates the ranker retains, in input order.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	text   string
	tokens map[string]struct{}
	tLen   int
}

type ranker struct {
	cfg  config
	docs []doc
}

// New builds a Ranker over the given candidates. Candidates whose text
// tokenizes to nothing are dropped.
func New(candidates []Candidate, opts ...Option) Ranker {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	docs := make([]doc, 0, len(candidates))
	for _, cand := range candidates {
		t := strings.TrimSpace(cand.Text)
		if t == "" {
			continue
		}
		toks := tokenize(t, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{id: cand.ID, text: t, tokens: toks, tLen: len(toks)})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &ranker{cfg: cfg, docs: docs}
}

// TopK returns up to k best-matching candidates by Jaccard similarity.
// Candidates with no token overlap are omitted entirely.
func (r *ranker) TopK(q string, k int) []Match {
	if len(r.docs) == 0 {
		return nil
	}
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, r.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		id       string
		text     string
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, minInt(k*4, len(r.docs)))
	for _, d := range r.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		score := float64(over) / union
		if score <= 0 {
			continue
		}
		buf = append(buf, scored{
			id:       d.id,
			text:     d.text,
			score:    score,
			lenRunes: utf8.RuneCountInString(d.text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].id < buf[b].id
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = Match{ID: buf[i].id, Text: buf[i].text, Score: buf[i].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
