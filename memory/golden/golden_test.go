package golden

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consiglia/memoria/ai"
	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store"
	"github.com/consiglia/memoria/store/db"
)

func newTestStore(t *testing.T) (*store.Store, *profile.Profile) {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   t.TempDir(),
	}
	p.FromEnv()
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, p
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }

func embedderFactory(e ai.EmbeddingService, err error) EmbedderFactory {
	return func() (ai.EmbeddingService, error) { return e, err }
}

func TestNormalizeQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, out string
	}{
		{"What is the capital of Italy?", "what is the capital of italy"},
		{"  HOW   long does   it take  ", "how long does it take"},
		{"done!!!", "done"},
		{"no punctuation", "no punctuation"},
		{"   ", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.out, NormalizeQuestion(tt.in), "input %q", tt.in)
	}
}

func TestLookupExactMatch(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	c := New(s, p, nil, nil)
	ctx := context.Background()

	_, err := c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-1",
		CanonicalQuestion: "How long does a PT PMA take?",
		Answer:            "About 60 days.",
		Sources:           []string{"conv-12", "conv-44"},
		Confidence:        0.9,
	})
	require.NoError(t, err)

	match := c.Lookup(ctx, "  how long does a pt pma TAKE??  ")
	require.NotNil(t, match)
	require.Equal(t, MatchExact, match.MatchType)
	require.Equal(t, "cluster-1", match.ClusterID)
	require.Equal(t, "About 60 days.", match.Answer)
	require.Equal(t, []string{"conv-12", "conv-44"}, match.Sources)
	require.Zero(t, match.Similarity)

	// The hit bumped the usage counter.
	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.TotalHits)
}

func TestLookupSemanticMatch(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	ctx := context.Background()

	c := New(s, p, embedderFactory(&stubEmbedder{vec: []float32{2, 1}}, nil), nil)

	// cosine([2,1], [1,2]) = 4/5 = 0.80, exactly at the threshold.
	_, err := c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-sim",
		CanonicalQuestion: "When does the immigration office open?",
		Answer:            "At 8am on weekdays.",
		Embedding:         []float32{1, 2},
		Confidence:        0.85,
	})
	require.NoError(t, err)

	match := c.Lookup(ctx, "completely different phrasing of the question")
	require.NotNil(t, match)
	require.Equal(t, MatchSemantic, match.MatchType)
	require.Equal(t, "cluster-sim", match.ClusterID)
	require.InDelta(t, 0.80, match.Similarity, 1e-12)
}

func TestLookupSemanticBoundary(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	ctx := context.Background()

	c := New(s, p, embedderFactory(&stubEmbedder{vec: []float32{2, 1}}, nil), nil)

	// cosine([2,1], [1,-2]) = 0: comfortably below the threshold.
	_, err := c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-far",
		CanonicalQuestion: "Where can I park downtown?",
		Answer:            "The garage on Via Roma.",
		Embedding:         []float32{1, -2},
	})
	require.NoError(t, err)

	require.Nil(t, c.Lookup(ctx, "an unrelated question"))

	// similarity == threshold is a hit (>=, not >).
	_, err = c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-edge",
		CanonicalQuestion: "What are the ferry times?",
		Answer:            "Hourly from the main pier.",
		Embedding:         []float32{1, 2},
	})
	require.NoError(t, err)

	match := c.Lookup(ctx, "an unrelated question")
	require.NotNil(t, match)
	require.Equal(t, "cluster-edge", match.ClusterID)
}

func TestLookupPicksHighestSimilarity(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	ctx := context.Background()

	c := New(s, p, embedderFactory(&stubEmbedder{vec: []float32{2, 1}}, nil), nil)

	_, err := c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-close",
		CanonicalQuestion: "close question",
		Answer:            "close answer",
		Embedding:         []float32{1, 2}, // 0.80
	})
	require.NoError(t, err)
	_, err = c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-closest",
		CanonicalQuestion: "closest question",
		Answer:            "closest answer",
		Embedding:         []float32{2, 1}, // 1.0
	})
	require.NoError(t, err)

	match := c.Lookup(ctx, "pick the best one")
	require.NotNil(t, match)
	require.Equal(t, "cluster-closest", match.ClusterID)
	require.InDelta(t, 1.0, match.Similarity, 1e-12)
}

func TestLookupDegradesToMiss(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		c := New(s, p, nil, nil)
		require.Nil(t, c.Lookup(ctx, "anything at all"))
	})

	t.Run("no embedder factory", func(t *testing.T) {
		c := New(s, p, nil, nil)
		_, err := c.Upsert(ctx, &store.GoldenAnswer{
			ClusterID:         "cluster-x",
			CanonicalQuestion: "some question",
			Answer:            "some answer",
			Embedding:         []float32{1, 0},
		})
		require.NoError(t, err)
		require.Nil(t, c.Lookup(ctx, "unrelated phrasing"))
	})

	t.Run("embedder construction fails", func(t *testing.T) {
		c := New(s, p, embedderFactory(nil, errors.New("no api key")), nil)
		require.Nil(t, c.Lookup(ctx, "unrelated phrasing"))
	})

	t.Run("embedding call fails", func(t *testing.T) {
		c := New(s, p, embedderFactory(&stubEmbedder{err: errors.New("provider down")}, nil), nil)
		require.Nil(t, c.Lookup(ctx, "unrelated phrasing"))
	})

	t.Run("blank query", func(t *testing.T) {
		c := New(s, p, nil, nil)
		require.Nil(t, c.Lookup(ctx, "   "))
	})
}

func TestLazyEmbedderInitializedOnce(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	ctx := context.Background()

	calls := 0
	c := New(s, p, func() (ai.EmbeddingService, error) {
		calls++
		return &stubEmbedder{vec: []float32{1, 0}}, nil
	}, nil)

	c.Lookup(ctx, "first semantic lookup")
	c.Lookup(ctx, "second semantic lookup")
	require.Equal(t, 1, calls)
}

func TestStats(t *testing.T) {
	t.Parallel()
	s, p := newTestStore(t)
	c := New(s, p, nil, nil)
	ctx := context.Background()

	_, err := c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-a",
		CanonicalQuestion: "question a",
		Answer:            "answer a",
		Confidence:        0.9,
	})
	require.NoError(t, err)
	_, err = c.Upsert(ctx, &store.GoldenAnswer{
		ClusterID:         "cluster-b",
		CanonicalQuestion: "question b",
		Answer:            "answer b",
		Confidence:        0.7,
	})
	require.NoError(t, err)

	require.NotNil(t, c.Lookup(ctx, "question a"))
	require.NotNil(t, c.Lookup(ctx, "question a"))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalGoldenAnswers)
	require.EqualValues(t, 2, stats.TotalHits)
	require.InDelta(t, 0.8, stats.AvgConfidence, 1e-9)
	require.Len(t, stats.TopByUsage, 2)
	require.Equal(t, "cluster-a", stats.TopByUsage[0].ClusterID)
}
