// Package golden implements the golden-answer cache: canonical answers for
// clusters of historically similar questions, matched first by normalized
// text and then by embedding similarity. The cache is an accelerator, not a
// source of truth; every internal failure degrades to a miss.
package golden

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/consiglia/memoria/ai"
	"github.com/consiglia/memoria/ai/metrics"
	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store"
)

// Match types.
const (
	MatchExact    = "exact"
	MatchSemantic = "semantic"
)

// Match is a golden answer lookup hit.
type Match struct {
	ClusterID  string   `json:"cluster_id"`
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources,omitempty"`
	Confidence float64  `json:"confidence"`
	MatchType  string   `json:"match_type"`
	// Similarity is set for semantic matches only.
	Similarity float64 `json:"similarity,omitempty"`
}

// EmbedderFactory builds the embedding service on first semantic lookup.
type EmbedderFactory func() (ai.EmbeddingService, error)

// Cache matches incoming questions against stored golden answers.
type Cache struct {
	store    *store.Store
	profile  *profile.Profile
	exporter *metrics.PrometheusExporter

	// Embedder is built lazily: most lookups resolve in the exact phase and
	// never pay for provider initialization.
	newEmbedder EmbedderFactory
	embedOnce   sync.Once
	embedder    ai.EmbeddingService
	embedErr    error
}

// New creates a golden answer cache. newEmbedder may be nil, which disables
// the semantic phase.
func New(s *store.Store, p *profile.Profile, newEmbedder EmbedderFactory, exporter *metrics.PrometheusExporter) *Cache {
	return &Cache{
		store:       s,
		profile:     p,
		newEmbedder: newEmbedder,
		exporter:    exporter,
	}
}

// NormalizeQuestion canonicalizes a question for exact matching: lowercase,
// trimmed, internal whitespace collapsed, trailing punctuation dropped.
func NormalizeQuestion(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return strings.TrimRight(normalized, "?!. ")
}

// Lookup resolves query against the cache. Phase one matches the normalized
// question exactly; phase two embeds the query and picks the stored answer
// with the highest cosine similarity at or above the configured threshold.
// Returns nil on a miss and on any internal failure.
func (c *Cache) Lookup(ctx context.Context, query string) *Match {
	normalized := NormalizeQuestion(query)
	if normalized == "" {
		c.exporter.RecordGoldenLookup("miss")
		return nil
	}

	if match := c.lookupExact(ctx, normalized); match != nil {
		c.exporter.RecordGoldenLookup(MatchExact)
		return match
	}

	if match := c.lookupSemantic(ctx, query); match != nil {
		c.exporter.RecordGoldenLookup(MatchSemantic)
		return match
	}

	c.exporter.RecordGoldenLookup("miss")
	return nil
}

func (c *Cache) lookupExact(ctx context.Context, normalized string) *Match {
	answer, err := c.store.GetGoldenAnswerByQuestion(ctx, normalized)
	if err != nil {
		slog.Debug("golden answer exact lookup failed", "error", err)
		return nil
	}
	if answer == nil {
		return nil
	}

	c.touch(ctx, answer.ClusterID)
	return &Match{
		ClusterID:  answer.ClusterID,
		Answer:     answer.Answer,
		Sources:    answer.Sources,
		Confidence: answer.Confidence,
		MatchType:  MatchExact,
	}
}

func (c *Cache) lookupSemantic(ctx context.Context, query string) *Match {
	embedder, err := c.lazyEmbedder()
	if err != nil {
		slog.Debug("golden answer semantic phase unavailable", "error", err)
		return nil
	}

	vector, err := embedder.Embed(ctx, query)
	if err != nil {
		slog.Debug("failed to embed golden answer query", "error", err)
		return nil
	}

	answers, err := c.store.ListGoldenAnswers(ctx, &store.FindGoldenAnswer{WithEmbeddings: true})
	if err != nil {
		slog.Debug("failed to list golden answer embeddings", "error", err)
		return nil
	}

	var best *store.GoldenAnswer
	bestSimilarity := -1.0
	for _, answer := range answers {
		similarity := cosineSimilarity(vector, answer.Embedding)
		if similarity > bestSimilarity {
			best, bestSimilarity = answer, similarity
		}
	}

	if best == nil || bestSimilarity < c.profile.GoldenSimilarityThreshold {
		return nil
	}

	c.touch(ctx, best.ClusterID)
	return &Match{
		ClusterID:  best.ClusterID,
		Answer:     best.Answer,
		Sources:    best.Sources,
		Confidence: best.Confidence,
		MatchType:  MatchSemantic,
		Similarity: bestSimilarity,
	}
}

// touch bumps the usage counter; failures never affect the returned answer.
func (c *Cache) touch(ctx context.Context, clusterID string) {
	if err := c.store.TouchGoldenAnswer(ctx, clusterID); err != nil {
		slog.Debug("failed to touch golden answer", "cluster_id", clusterID, "error", err)
	}
}

func (c *Cache) lazyEmbedder() (ai.EmbeddingService, error) {
	c.embedOnce.Do(func() {
		if c.newEmbedder == nil {
			c.embedErr = errors.New("no embedding factory configured")
			return
		}
		c.embedder, c.embedErr = c.newEmbedder()
	})
	return c.embedder, c.embedErr
}

// Upsert writes a golden answer produced by the external clustering process,
// normalizing the canonical question for the exact-match phase.
func (c *Cache) Upsert(ctx context.Context, answer *store.GoldenAnswer) (*store.GoldenAnswer, error) {
	answer.NormalizedQuestion = NormalizeQuestion(answer.CanonicalQuestion)
	return c.store.UpsertGoldenAnswer(ctx, answer)
}

// Stats reports aggregate golden answer metrics.
func (c *Cache) Stats(ctx context.Context) (*store.GoldenAnswerStats, error) {
	return c.store.GetGoldenAnswerStats(ctx)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / math.Sqrt(normA*normB)
}
