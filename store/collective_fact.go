package store

import (
	"time"

	"github.com/pkg/errors"
)

// CollectiveFact represents a piece of shared knowledge confirmed across users.
// Exactly one row exists per ContentHash; SourceCount mirrors the number of
// distinct contributor records.
type CollectiveFact struct {
	FirstLearnedAt  time.Time
	LastConfirmedAt time.Time
	Metadata        map[string]any
	Content         string
	ContentHash     string
	Category        string
	Confidence      float64
	ID              int64
	SourceCount     int
	IsPromoted      bool
}

// FactContribution records that a user contributed a fact.
// Unique per (FactID, UserID) so one user cannot inflate SourceCount.
type FactContribution struct {
	ContributedAt time.Time
	FactID        int64
	UserID        int32
}

// FindCollectiveFact specifies the conditions for finding collective facts.
type FindCollectiveFact struct {
	ID           *int64
	ContentHash  *string
	Category     *string
	PromotedOnly bool
	Limit        int
	Offset       int
}

// DeleteCollectiveFact specifies the conditions for deleting collective facts.
type DeleteCollectiveFact struct {
	ID *int64
}

// AddContributionOptions carries the parameters of the atomic contribution
// transaction. The confidence arithmetic is passed in so the whole
// check-then-write resolves inside a single driver transaction backed by the
// content_hash unique constraint.
type AddContributionOptions struct {
	Metadata           map[string]any
	Content            string
	ContentHash        string
	Category           string
	InitialConfidence  float64
	ConfirmBoost       float64
	ConfidenceCap      float64
	UserID             int32
	PromotionThreshold int
}

// Validate validates the AddContributionOptions.
func (o *AddContributionOptions) Validate() error {
	if o.Content == "" {
		return errors.New("content cannot be empty")
	}
	if o.ContentHash == "" {
		return errors.New("content hash cannot be empty")
	}
	if o.PromotionThreshold <= 0 {
		return errors.Errorf("invalid promotion threshold: %d", o.PromotionThreshold)
	}
	return nil
}

// ContributionOutcome is the result of the atomic contribution transaction.
type ContributionOutcome struct {
	Fact *CollectiveFact
	// Created is true when the fact row was inserted by this call.
	Created bool
	// Contributed is true when the (fact, user) contribution record was
	// inserted by this call; false means the pair already existed.
	Contributed bool
}

// RefuteCollectiveFactOptions carries the parameters of the atomic refutation
// transaction. Refutation lowers confidence only; it never touches SourceCount.
type RefuteCollectiveFactOptions struct {
	FactID       int64
	Penalty      float64
	RemovalFloor float64
}

// RefuteOutcome is the result of the atomic refutation transaction.
type RefuteOutcome struct {
	Confidence float64
	Found      bool
	// Removed is true when the refutation drove confidence to or below the
	// removal floor and the fact was deleted.
	Removed bool
}

// CollectiveFactStats aggregates fact counts for reporting.
type CollectiveFactStats struct {
	ByCategory    map[string]int
	TotalFacts    int
	PromotedFacts int
	PendingFacts  int
}

// CollectiveFactEmbedding represents the vector embedding of a collective fact.
type CollectiveFactEmbedding struct {
	Model     string
	Embedding []float32
	ID        int32
	FactID    int64
	CreatedTs int64
	UpdatedTs int64
}

// FactVectorSearchOptions represents the options for collective fact vector search.
type FactVectorSearchOptions struct {
	Category     *string
	Vector       []float32
	Limit        int
	PromotedOnly bool
}

// Validate validates the FactVectorSearchOptions.
func (o *FactVectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.New("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10 // Default limit
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	return nil
}

// CollectiveFactWithScore represents a vector search result with similarity score.
type CollectiveFactWithScore struct {
	Fact  *CollectiveFact
	Score float32 // Similarity score (0-1, higher is more similar)
}
