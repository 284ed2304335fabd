// Package embedding converts text to fixed-dimension float32 vectors through
// any OpenAI-compatible embedding server, with a two-tier cache partitioned by
// semantic namespace (name / affiliation / topic / artifact body).
//
// Usage:
//
//	svc := embedding.NewService(embedding.New(cfg), embedding.ServiceOptions{...})
//	vec, err := svc.Embed(ctx, embedding.NamespaceBody, "attention is all you need")
package embedding

import (
	"context"
	"time"
)

// Namespace partitions the cache by semantic use so name vectors are never
// compared against body vectors.
type Namespace string

const (
	NamespaceName        Namespace = "name"
	NamespaceAffiliation Namespace = "affiliation"
	NamespaceTopic       Namespace = "topic"
	NamespaceBody        Namespace = "body"
)

// Embedder converts text to vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts in one call,
	// preserving input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension, 0 if not yet detected.
	Dimension() int

	// Model returns the model name.
	Model() string
}

// Config configures the embedding client.
type Config struct {
	// Endpoint is the base URL of the embedding server. If empty, New
	// returns a NoopEmbedder producing zero vectors.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// Model is the model name sent in the request.
	Model string `mapstructure:"model" json:"model"`

	// Dimension is the expected vector dimension. 0 means auto-detect.
	Dimension int `mapstructure:"dimension" json:"dimension"`

	// BatchSize is the maximum number of texts per HTTP request. Default 32.
	BatchSize int `mapstructure:"batchSize" json:"batchSize"`

	// Timeout per HTTP request. Default 30s.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// New creates an Embedder from config. An empty endpoint yields a
// NoopEmbedder so the engine can be wired without a live model server.
func New(cfg Config) Embedder {
	cfg.defaults()
	if cfg.Endpoint == "" {
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 768
		}
		return &NoopEmbedder{Dim: dim, Name: cfg.Model}
	}
	return newOpenAIClient(cfg)
}

// NoopEmbedder returns zero vectors. Useful for wiring tests without a server.
type NoopEmbedder struct {
	Dim  int
	Name string
}

func (n *NoopEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, n.Dim), nil
}

func (n *NoopEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, n.Dim)
	}
	return out, nil
}

func (n *NoopEmbedder) Dimension() int { return n.Dim }
func (n *NoopEmbedder) Model() string  { return n.Name }
