// Package collective implements shared cross-user memory: facts contributed
// by individual users, deduplicated by content hash and promoted to general
// knowledge once enough distinct users confirm them.
package collective

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/consiglia/memoria/ai"
	"github.com/consiglia/memoria/ai/metrics"
	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store"
)

// Contribution statuses.
const (
	StatusCreated            = "created"
	StatusConfirmed          = "confirmed"
	StatusAlreadyContributed = "already_contributed"
	StatusSkipped            = "skipped"
)

// Refutation statuses.
const (
	StatusNotFound = "not_found"
	StatusRefuted  = "refuted"
	StatusRemoved  = "removed"
)

// ContributionResult is the outcome of AddContribution.
type ContributionResult struct {
	Status      string `json:"status"`
	MemoryID    int64  `json:"memory_id,omitempty"`
	SourceCount int    `json:"source_count,omitempty"`
	IsPromoted  bool   `json:"is_promoted,omitempty"`
}

// RefutationResult is the outcome of RefuteFact.
type RefutationResult struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence,omitempty"`
}

// MemoryStore is the collective memory component. All confidence arithmetic
// resolves inside single store transactions; the vector index is synced
// best-effort after the relational write commits.
type MemoryStore struct {
	store    *store.Store
	profile  *profile.Profile
	embedder ai.EmbeddingService
	exporter *metrics.PrometheusExporter
}

// New creates a collective memory store. embedder and exporter may be nil;
// without an embedder the semantic path degrades to deterministic ordering.
func New(s *store.Store, p *profile.Profile, embedder ai.EmbeddingService, exporter *metrics.PrometheusExporter) *MemoryStore {
	return &MemoryStore{
		store:    s,
		profile:  p,
		embedder: embedder,
		exporter: exporter,
	}
}

// AddContribution records that userID asserted content. Identical normalized
// content from different users confirms the same fact; the same user
// re-asserting is an idempotent no-op. Concurrent identical contributions
// resolve through the content_hash unique constraint, never as duplicates.
func (m *MemoryStore) AddContribution(ctx context.Context, userID int32, content, category string) (*ContributionResult, error) {
	if strings.TrimSpace(content) == "" {
		m.exporter.RecordContribution(StatusSkipped)
		return &ContributionResult{Status: StatusSkipped}, fmt.Errorf("content cannot be empty")
	}

	outcome, err := m.store.AddContribution(ctx, &store.AddContributionOptions{
		UserID:             userID,
		Content:            content,
		ContentHash:        HashContent(content),
		Category:           category,
		InitialConfidence:  m.profile.InitialConfidence,
		ConfirmBoost:       m.profile.ConfirmBoost,
		ConfidenceCap:      m.profile.ConfidenceCap,
		PromotionThreshold: m.profile.PromotionThreshold,
	})
	if err != nil {
		m.exporter.RecordContribution("error")
		return nil, fmt.Errorf("add contribution: %w", err)
	}

	status := StatusAlreadyContributed
	switch {
	case outcome.Created:
		status = StatusCreated
	case outcome.Contributed:
		status = StatusConfirmed
	}
	m.exporter.RecordContribution(status)

	if outcome.Contributed {
		m.syncEmbedding(ctx, outcome.Fact)
	}

	return &ContributionResult{
		Status:      status,
		MemoryID:    outcome.Fact.ID,
		SourceCount: outcome.Fact.SourceCount,
		IsPromoted:  outcome.Fact.IsPromoted,
	}, nil
}

// RefuteFact lowers a fact's confidence by the configured penalty; crossing
// the removal floor deletes the fact permanently. Refutation never touches
// source_count.
func (m *MemoryStore) RefuteFact(ctx context.Context, userID int32, memoryID int64) (*RefutationResult, error) {
	outcome, err := m.store.RefuteCollectiveFact(ctx, &store.RefuteCollectiveFactOptions{
		FactID:       memoryID,
		Penalty:      m.profile.RefutePenalty,
		RemovalFloor: m.profile.RemovalFloor,
	})
	if err != nil {
		m.exporter.RecordRefutation("error")
		return nil, fmt.Errorf("refute fact: %w", err)
	}

	if !outcome.Found {
		m.exporter.RecordRefutation(StatusNotFound)
		return &RefutationResult{Status: StatusNotFound}, nil
	}

	status := StatusRefuted
	if outcome.Removed {
		status = StatusRemoved
		// Embedding rows cascade with the fact on postgres; the explicit
		// delete keeps sqlite exports tidy too.
		if err := m.store.DeleteCollectiveFactEmbedding(ctx, memoryID); err != nil {
			slog.Debug("failed to delete fact embedding", "fact_id", memoryID, "error", err)
		}
	}
	m.exporter.RecordRefutation(status)

	slog.Info("collective fact refuted",
		slog.Int64("fact_id", memoryID),
		slog.Int("user_id", int(userID)),
		slog.String("status", status),
		slog.Float64("confidence", outcome.Confidence))

	return &RefutationResult{Status: status, Confidence: outcome.Confidence}, nil
}

// CollectiveContext returns the content of promoted facts, most trusted
// first. category filters when non-empty.
func (m *MemoryStore) CollectiveContext(ctx context.Context, category string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	find := &store.FindCollectiveFact{
		PromotedOnly: true,
		Limit:        limit,
	}
	if category != "" {
		find.Category = &category
	}

	facts, err := m.store.ListCollectiveFacts(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("list collective facts: %w", err)
	}

	contents := make([]string, 0, len(facts))
	for _, fact := range facts {
		contents = append(contents, fact.Content)
	}
	return contents, nil
}

// RelevantContext returns promoted facts ranked by semantic similarity to
// query. Any failure on the semantic path (no embedder, provider error,
// driver without vector search) falls back silently to CollectiveContext
// ordering; callers never observe an error from this path.
func (m *MemoryStore) RelevantContext(ctx context.Context, query string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}

	contents, err := m.relevantContext(ctx, query, limit)
	if err == nil {
		return contents
	}

	m.exporter.RecordSemanticFallback()
	slog.Debug("semantic retrieval degraded to deterministic ordering", "error", err)

	contents, err = m.CollectiveContext(ctx, "", limit)
	if err != nil {
		slog.Debug("deterministic fallback failed", "error", err)
		return []string{}
	}
	return contents
}

func (m *MemoryStore) relevantContext(ctx context.Context, query string, limit int) ([]string, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("no embedding service configured")
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := m.store.SearchCollectiveFactsByVector(ctx, &store.FactVectorSearchOptions{
		Vector:       vector,
		Limit:        limit,
		PromotedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	contents := make([]string, 0, len(results))
	for _, result := range results {
		contents = append(contents, result.Fact.Content)
	}
	return contents, nil
}

// Stats reports aggregate fact counts.
func (m *MemoryStore) Stats(ctx context.Context) (*store.CollectiveFactStats, error) {
	return m.store.GetCollectiveFactStats(ctx)
}

// syncEmbedding pushes the fact's vector into the index after the relational
// write committed. The index is an eventually consistent accelerator; any
// failure here is logged, never surfaced.
func (m *MemoryStore) syncEmbedding(ctx context.Context, fact *store.CollectiveFact) {
	if m.embedder == nil {
		return
	}

	vector, err := m.embedder.Embed(ctx, fact.Content)
	if err != nil {
		slog.Debug("failed to embed fact content", "fact_id", fact.ID, "error", err)
		return
	}

	if _, err := m.store.UpsertCollectiveFactEmbedding(ctx, &store.CollectiveFactEmbedding{
		FactID:    fact.ID,
		Model:     m.profile.EmbeddingModel,
		Embedding: vector,
	}); err != nil {
		slog.Debug("failed to sync fact embedding", "fact_id", fact.ID, "error", err)
	}
}
