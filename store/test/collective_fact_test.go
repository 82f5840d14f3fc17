package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consiglia/memoria/store"
)

func defaultContribution(userID int32, content, hash string) *store.AddContributionOptions {
	return &store.AddContributionOptions{
		UserID:             userID,
		Content:            content,
		ContentHash:        hash,
		InitialConfidence:  0.5,
		ConfirmBoost:       0.15,
		ConfidenceCap:      0.95,
		PromotionThreshold: 3,
	}
}

func TestAddContributionDriver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	first, err := ts.AddContribution(ctx, defaultContribution(1, "fact", "hash-1"))
	require.NoError(t, err)
	require.True(t, first.Created)
	require.True(t, first.Contributed)
	require.Equal(t, 1, first.Fact.SourceCount)
	require.InDelta(t, 0.5, first.Fact.Confidence, 1e-9)
	require.False(t, first.Fact.IsPromoted)

	// Same user again: the contribution record already exists.
	repeat, err := ts.AddContribution(ctx, defaultContribution(1, "fact", "hash-1"))
	require.NoError(t, err)
	require.False(t, repeat.Created)
	require.False(t, repeat.Contributed)
	require.Equal(t, first.Fact.ID, repeat.Fact.ID)
	require.Equal(t, 1, repeat.Fact.SourceCount)

	// A second user confirms: confidence climbs, count follows contributors.
	second, err := ts.AddContribution(ctx, defaultContribution(2, "fact", "hash-1"))
	require.NoError(t, err)
	require.False(t, second.Created)
	require.True(t, second.Contributed)
	require.Equal(t, 2, second.Fact.SourceCount)
	require.InDelta(t, 0.65, second.Fact.Confidence, 1e-9)

	third, err := ts.AddContribution(ctx, defaultContribution(3, "fact", "hash-1"))
	require.NoError(t, err)
	require.True(t, third.Fact.IsPromoted)

	facts, err := ts.ListCollectiveFacts(ctx, &store.FindCollectiveFact{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestAddContributionValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.AddContribution(ctx, &store.AddContributionOptions{
		UserID:             1,
		Content:            "",
		ContentHash:        "h",
		PromotionThreshold: 3,
	})
	require.Error(t, err)

	_, err = ts.AddContribution(ctx, &store.AddContributionOptions{
		UserID:      1,
		Content:     "c",
		ContentHash: "h",
	})
	require.Error(t, err, "zero promotion threshold must be rejected")
}

func TestRefuteCollectiveFactDriver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	added, err := ts.AddContribution(ctx, defaultContribution(1, "refutable", "hash-r"))
	require.NoError(t, err)

	refuted, err := ts.RefuteCollectiveFact(ctx, &store.RefuteCollectiveFactOptions{
		FactID:       added.Fact.ID,
		Penalty:      0.1,
		RemovalFloor: 0.2,
	})
	require.NoError(t, err)
	require.True(t, refuted.Found)
	require.False(t, refuted.Removed)
	require.InDelta(t, 0.4, refuted.Confidence, 1e-9)

	removed, err := ts.RefuteCollectiveFact(ctx, &store.RefuteCollectiveFactOptions{
		FactID:       added.Fact.ID,
		Penalty:      0.2,
		RemovalFloor: 0.2,
	})
	require.NoError(t, err)
	require.True(t, removed.Removed)

	missing, err := ts.RefuteCollectiveFact(ctx, &store.RefuteCollectiveFactOptions{
		FactID:       added.Fact.ID,
		Penalty:      0.1,
		RemovalFloor: 0.2,
	})
	require.NoError(t, err)
	require.False(t, missing.Found)
}

func TestListCollectiveFactsFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	opts := defaultContribution(1, "promoted", "hash-p")
	opts.PromotionThreshold = 1
	opts.Category = "transport"
	_, err := ts.AddContribution(ctx, opts)
	require.NoError(t, err)

	pending := defaultContribution(1, "pending", "hash-q")
	pending.Category = "food"
	_, err = ts.AddContribution(ctx, pending)
	require.NoError(t, err)

	promoted, err := ts.ListCollectiveFacts(ctx, &store.FindCollectiveFact{PromotedOnly: true})
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	require.Equal(t, "promoted", promoted[0].Content)

	category := "food"
	byCategory, err := ts.ListCollectiveFacts(ctx, &store.FindCollectiveFact{Category: &category})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	hash := "hash-q"
	byHash, err := ts.ListCollectiveFacts(ctx, &store.FindCollectiveFact{ContentHash: &hash})
	require.NoError(t, err)
	require.Len(t, byHash, 1)
	require.Equal(t, "pending", byHash[0].Content)

	stats, err := ts.GetCollectiveFactStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalFacts)
	require.Equal(t, 1, stats.PromotedFacts)
	require.Equal(t, 1, stats.PendingFacts)
}

func TestCollectiveFactEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	added, err := ts.AddContribution(ctx, defaultContribution(1, "vectored", "hash-v"))
	require.NoError(t, err)

	embedding, err := ts.UpsertCollectiveFactEmbedding(ctx, &store.CollectiveFactEmbedding{
		FactID:    added.Fact.ID,
		Model:     "test-model",
		Embedding: []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	require.NotZero(t, embedding.ID)

	// Upsert with the same (fact, model) key updates in place.
	updated, err := ts.UpsertCollectiveFactEmbedding(ctx, &store.CollectiveFactEmbedding{
		FactID:    added.Fact.ID,
		Model:     "test-model",
		Embedding: []float32{0.4, 0.5, 0.6},
	})
	require.NoError(t, err)
	require.Equal(t, embedding.ID, updated.ID)

	require.NoError(t, ts.DeleteCollectiveFactEmbedding(ctx, added.Fact.ID))
}

func TestVectorSearchSupport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	if ts.GetDriver().GetDB() == nil {
		t.Skip("no database")
	}

	_, err := ts.SearchCollectiveFactsByVector(ctx, &store.FactVectorSearchOptions{
		Vector: []float32{0.1, 0.2},
	})
	// The sqlite driver has no vector index and must say so with the
	// sentinel that triggers the deterministic fallback.
	if err != nil {
		require.ErrorIs(t, err, store.ErrVectorSearchUnsupported)
	}
}
