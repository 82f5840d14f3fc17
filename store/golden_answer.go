package store

import "time"

// GoldenAnswer is the canonical answer for a cluster of historically similar
// questions. Rows are produced by an external clustering process; this core
// only reads, matches and bumps usage.
type GoldenAnswer struct {
	LastUsed           *time.Time
	ClusterID          string
	CanonicalQuestion  string
	NormalizedQuestion string
	Answer             string
	Sources            []string
	Embedding          []float32
	Confidence         float64
	UsageCount         int64
}

// FindGoldenAnswer specifies the conditions for finding golden answers.
type FindGoldenAnswer struct {
	ClusterID          *string
	NormalizedQuestion *string
	// WithEmbeddings controls whether canonical embeddings are loaded.
	// The semantic lookup path needs them; everything else does not.
	WithEmbeddings bool
	Limit          int
}

// GoldenAnswerUsage is a usage leaderboard row.
type GoldenAnswerUsage struct {
	ClusterID         string
	CanonicalQuestion string
	UsageCount        int64
}

// GoldenAnswerStats aggregates golden answer metrics for reporting.
type GoldenAnswerStats struct {
	TopByUsage         []*GoldenAnswerUsage
	TotalGoldenAnswers int
	TotalHits          int64
	AvgConfidence      float64
}
