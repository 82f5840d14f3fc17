package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// ErrVectorSearchUnsupported is returned by drivers without vector search
// support (sqlite). Callers are expected to fall back to the deterministic
// non-semantic ordering.
var ErrVectorSearchUnsupported = errors.New("vector search is not supported by this driver")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// CollectiveFact model related methods.
	//
	// AddContribution runs the whole contribute path in one transaction:
	// lookup-or-insert the fact keyed by content_hash (unique constraint, not
	// read-then-write), insert the contribution record, recompute
	// source_count/confidence/is_promoted.
	AddContribution(ctx context.Context, opts *AddContributionOptions) (*ContributionOutcome, error)
	// RefuteCollectiveFact lowers confidence and deletes the fact when the
	// result crosses the removal floor, in one transaction.
	RefuteCollectiveFact(ctx context.Context, opts *RefuteCollectiveFactOptions) (*RefuteOutcome, error)
	ListCollectiveFacts(ctx context.Context, find *FindCollectiveFact) ([]*CollectiveFact, error)
	DeleteCollectiveFact(ctx context.Context, delete *DeleteCollectiveFact) error
	GetCollectiveFactStats(ctx context.Context) (*CollectiveFactStats, error)

	// CollectiveFactEmbedding model related methods.
	UpsertCollectiveFactEmbedding(ctx context.Context, embedding *CollectiveFactEmbedding) (*CollectiveFactEmbedding, error)
	DeleteCollectiveFactEmbedding(ctx context.Context, factID int64) error

	// SearchCollectiveFactsByVector performs vector similarity search over
	// fact embeddings. Drivers without vector support return
	// ErrVectorSearchUnsupported.
	SearchCollectiveFactsByVector(ctx context.Context, opts *FactVectorSearchOptions) ([]*CollectiveFactWithScore, error)

	// GoldenAnswer model related methods.
	UpsertGoldenAnswer(ctx context.Context, upsert *GoldenAnswer) (*GoldenAnswer, error)
	ListGoldenAnswers(ctx context.Context, find *FindGoldenAnswer) ([]*GoldenAnswer, error)
	// TouchGoldenAnswer increments usage_count and stamps last_used.
	TouchGoldenAnswer(ctx context.Context, clusterID string) error
	GetGoldenAnswerStats(ctx context.Context) (*GoldenAnswerStats, error)

	// EpisodicEvent model related methods.
	CreateEpisodicEvent(ctx context.Context, create *EpisodicEvent) (*EpisodicEvent, error)
	ListEpisodicEvents(ctx context.Context, find *FindEpisodicEvent) ([]*EpisodicEvent, error)
	// DeleteEpisodicEvents returns the number of rows deleted so callers can
	// distinguish "not found or not owned" from success.
	DeleteEpisodicEvents(ctx context.Context, delete *DeleteEpisodicEvent) (int64, error)
}
