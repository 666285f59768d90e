package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OpenAIEmbedderOptions configures OpenAIEmbedder.
type OpenAIEmbedderOptions struct {
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	opts   OpenAIEmbedderOptions
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. Without an APIKey the client falls
// back to OPENAI_API_KEY.
func NewOpenAIEmbedder(optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	opts := OpenAIEmbedderOptions{
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &OpenAIEmbedder{client: openai.NewClient(clientOpts...), opts: opts}
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int { return e.opts.Dimensions }

// Embed implements Embedder. Vectors are returned in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      e.opts.Model,
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(e.opts.Dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai: %w", err)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding: invalid index %d in response", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vecs[d.Index] = v
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embedding: missing vector for input %d", i)
		}
	}
	return vecs, nil
}

// HashEmbedder is a deterministic offline Embedder using feature hashing over
// the same tokens as InMemoryIndex. Used when no API key is configured.
type HashEmbedder struct {
	dims int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates an embedder producing dims-sized unit vectors.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions implements Embedder.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed implements Embedder.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.dims)
		for tok := range tokenSet(t) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(tok))
			v[f.Sum32()%uint32(h.dims)] += 1
		}
		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		if norm > 0 {
			n := float32(math.Sqrt(norm))
			for j := range v {
				v[j] /= n
			}
		}
		out[i] = v
	}
	return out, nil
}
