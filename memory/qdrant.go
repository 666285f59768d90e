package memory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/artdevesa7/Agentic-AI-designs/logging"
)

// documentNamespace derives stable point ids from document ids.
var documentNamespace = uuid.MustParse("6f1c5e8e-3f0d-4b5a-9a57-0d4c1f3e2b7a")

// QdrantOptions configures QdrantIndex.
type QdrantOptions struct {
	URL        string // e.g. "http://localhost:6333" or "https://xyz.cloud.qdrant.io:6333"
	APIKey     string
	Collection string
	Logger     logging.Logger
}

// QdrantIndex implements Index on a Qdrant collection. Query text is embedded
// with the configured Embedder; the document fields live in the payload.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
	logger     logging.Logger
}

var _ Index = (*QdrantIndex)(nil)

// parseQdrantURL extracts host, gRPC port and TLS flag. The REST port 6333 is
// mapped to the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("memory: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("memory: invalid port in qdrant URL: %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// NewQdrantIndex connects to Qdrant over gRPC.
func NewQdrantIndex(embedder Embedder, optFns ...func(o *QdrantOptions)) (*QdrantIndex, error) {
	opts := QdrantOptions{
		URL:        "http://localhost:6333",
		Collection: "market_research",
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	host, port, useTLS, err := parseQdrantURL(opts.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: opts.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: opts.Collection,
		embedder:   embedder,
		logger:     opts.Logger,
	}, nil
}

// EnsureCollection creates the collection when missing.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("memory: check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.embedder.Dimensions()), //nolint:gosec
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("memory: create collection %q: %w", q.collection, err)
	}
	q.logger.Info("memory.qdrant.collection_created", "collection", q.collection, "dims", q.embedder.Dimensions())
	return nil
}

// Add implements Index by embedding and upserting docs.
func (q *QdrantIndex) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := q.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(d.ID).String()),
			Vectors: qdrant.NewVectorsDense(vecs[i]),
			Payload: qdrant.NewValueMap(documentPayload(d)),
		}
	}

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("memory: qdrant upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search implements Index.
func (q *QdrantIndex) Search(ctx context.Context, query string, topK int) (SearchResult, error) {
	if len(tokenSet(query)) == 0 {
		return SearchResult{}, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	vecs, err := q.embedder.Embed(ctx, []string{query})
	if err != nil {
		return SearchResult{}, err
	}

	limit := uint64(topK) //nolint:gosec
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vecs[0]),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("memory: qdrant query: %w", err)
	}

	res := SearchResult{Query: query, Results: make([]Hit, 0, len(scored))}
	for _, sp := range scored {
		res.Results = append(res.Results, Hit{
			Document:   payloadDocument(sp.Payload),
			Similarity: float64(sp.Score),
		})
	}
	res.TotalFound = len(res.Results)
	return res, nil
}

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error { return q.client.Close() }

func pointID(docID string) uuid.UUID {
	return uuid.NewSHA1(documentNamespace, []byte(docID))
}

func documentPayload(d Document) map[string]any {
	p := map[string]any{
		"doc_id":  d.ID,
		"content": d.Content,
	}
	if d.Source != "" {
		p["source"] = d.Source
	}
	if d.Date != "" {
		p["date"] = d.Date
	}
	return p
}

func payloadDocument(p map[string]*qdrant.Value) Document {
	return Document{
		ID:      p["doc_id"].GetStringValue(),
		Content: p["content"].GetStringValue(),
		Source:  p["source"].GetStringValue(),
		Date:    p["date"].GetStringValue(),
	}
}
