package memory

import (
	"context"
	"errors"
)

// ErrEmptyQuery is returned when searching with a blank query.
var ErrEmptyQuery = errors.New("search query must not be empty")

// DefaultTopK is the number of hits returned when the caller gives none.
const DefaultTopK = 5

// Document is a searchable report or news item.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Date     string         `json:"date,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Hit is a document with its similarity to the query in [0,1].
type Hit struct {
	Document
	Similarity float64 `json:"similarity"`
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Query      string `json:"query"`
	Results    []Hit  `json:"results"`
	TotalFound int    `json:"total_found"`
}

// Index retrieves documents similar to a query.
type Index interface {
	Search(ctx context.Context, query string, topK int) (SearchResult, error)
	Add(ctx context.Context, docs ...Document) error
}

// SeedDocuments is the corpus loaded into a fresh index when nothing else is
// configured.
func SeedDocuments() []Document {
	return []Document{
		{ID: "mw-2025-12-15", Content: "Analysis report on tech stocks showing strong performance in Q4", Source: "MarketWatch", Date: "2025-12-15"},
		{ID: "bb-2025-12-10", Content: "AI sector stocks recommended for long-term growth", Source: "Bloomberg", Date: "2025-12-10"},
		{ID: "rt-2025-12-18", Content: "Market volatility expected due to economic indicators", Source: "Reuters", Date: "2025-12-18"},
		{ID: "ft-2025-12-12", Content: "Semiconductor supply constraints easing as chip demand from data centers rises", Source: "Financial Times", Date: "2025-12-12"},
		{ID: "wsj-2025-12-16", Content: "Apple services revenue growth offsets slower iPhone upgrade cycle", Source: "Wall Street Journal", Date: "2025-12-16"},
		{ID: "cnbc-2025-12-17", Content: "Rising interest rates weigh on high-valuation growth stocks and increase downside risk", Source: "CNBC", Date: "2025-12-17"},
	}
}
