package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// InMemoryIndex is a process-local Index scoring documents by token overlap
// with the query (cosine over term sets). It is protected by an RWMutex and
// suited for tests, demos and offline runs.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs []indexedDoc
}

type indexedDoc struct {
	doc    Document
	tokens map[string]struct{}
}

var _ Index = (*InMemoryIndex)(nil)

// NewInMemoryIndex creates an index holding docs.
func NewInMemoryIndex(docs ...Document) *InMemoryIndex {
	idx := &InMemoryIndex{}
	_ = idx.Add(context.Background(), docs...)
	return idx
}

// Add implements Index. A document with an existing ID replaces the old one.
func (m *InMemoryIndex) Add(_ context.Context, docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		entry := indexedDoc{doc: d, tokens: tokenSet(d.Content)}
		replaced := false
		for i := range m.docs {
			if m.docs[i].doc.ID == d.ID && d.ID != "" {
				m.docs[i] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			m.docs = append(m.docs, entry)
		}
	}
	return nil
}

// Search implements Index. Ties keep insertion order.
func (m *InMemoryIndex) Search(ctx context.Context, query string, topK int) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return SearchResult{}, err
	}
	q := tokenSet(query)
	if len(q) == 0 {
		return SearchResult{}, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.docs))
	for _, d := range m.docs {
		s := overlap(q, d.tokens)
		if s == 0 {
			continue
		}
		hits = append(hits, Hit{Document: d.doc, Similarity: math.Round(s*100) / 100})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

	res := SearchResult{Query: query, TotalFound: len(hits)}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	res.Results = hits
	return res, nil
}

// Len returns the number of indexed documents.
func (m *InMemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "for": {}, "to": {}, "in": {},
	"on": {}, "is": {}, "i": {}, "should": {}, "what": {}, "about": {}, "as": {}, "due": {},
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop || len(f) < 2 {
			continue
		}
		out[stem(f)] = struct{}{}
	}
	return out
}

// stem drops a plural "s" so "stocks" matches "stock".
func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}
