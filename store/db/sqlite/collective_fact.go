package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

const collectiveFactColumns = "id, content, content_hash, category, confidence, source_count, is_promoted, first_learned_ts, last_confirmed_ts, metadata"

func (d *DB) AddContribution(ctx context.Context, opts *store.AddContributionOptions) (*store.ContributionOutcome, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	metadata, err := marshalJSON(opts.Metadata, "{}")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	var factID int64
	created := false
	err = tx.QueryRowContext(ctx, `
		INSERT INTO collective_fact (content, content_hash, category, confidence, source_count, is_promoted, first_learned_ts, last_confirmed_ts, metadata)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id`,
		opts.Content,
		opts.ContentHash,
		opts.Category,
		opts.InitialConfidence,
		opts.PromotionThreshold <= 1,
		now,
		now,
		string(metadata),
	).Scan(&factID)
	switch {
	case err == nil:
		created = true
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowContext(ctx, `SELECT id FROM collective_fact WHERE content_hash = ?`, opts.ContentHash).Scan(&factID); err != nil {
			return nil, errors.Wrap(err, "failed to resolve fact by content hash")
		}
	default:
		return nil, errors.Wrap(err, "failed to upsert collective fact")
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO collective_fact_contributor (fact_id, user_id, contributed_ts)
		VALUES (?, ?, ?)
		ON CONFLICT (fact_id, user_id) DO NOTHING`,
		factID, opts.UserID, now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert fact contribution")
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read contribution rows affected")
	}
	contributed := inserted > 0

	if contributed && !created {
		if _, err := tx.ExecContext(ctx, `
			UPDATE collective_fact SET
				source_count = (SELECT COUNT(*) FROM collective_fact_contributor WHERE fact_id = ?),
				confidence = MIN(?, confidence + ?),
				is_promoted = (SELECT COUNT(*) FROM collective_fact_contributor WHERE fact_id = ?) >= ?,
				last_confirmed_ts = ?
			WHERE id = ?`,
			factID, opts.ConfidenceCap, opts.ConfirmBoost, factID, opts.PromotionThreshold, now, factID,
		); err != nil {
			return nil, errors.Wrap(err, "failed to confirm collective fact")
		}
	}

	fact, err := scanCollectiveFact(tx.QueryRowContext(ctx,
		`SELECT `+collectiveFactColumns+` FROM collective_fact WHERE id = ?`, factID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read collective fact")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit contribution")
	}

	return &store.ContributionOutcome{
		Fact:        fact,
		Created:     created,
		Contributed: contributed,
	}, nil
}

func (d *DB) RefuteCollectiveFact(ctx context.Context, opts *store.RefuteCollectiveFactOptions) (*store.RefuteOutcome, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var confidence float64
	err = tx.QueryRowContext(ctx, `
		UPDATE collective_fact SET confidence = confidence - ?
		WHERE id = ?
		RETURNING confidence`,
		opts.Penalty, opts.FactID,
	).Scan(&confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.RefuteOutcome{Found: false}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to refute collective fact")
	}

	removed := false
	if confidence <= opts.RemovalFloor {
		if _, err := tx.ExecContext(ctx, `DELETE FROM collective_fact WHERE id = ?`, opts.FactID); err != nil {
			return nil, errors.Wrap(err, "failed to remove refuted fact")
		}
		removed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit refutation")
	}

	return &store.RefuteOutcome{
		Found:      true,
		Removed:    removed,
		Confidence: confidence,
	}, nil
}

func (d *DB) ListCollectiveFacts(ctx context.Context, find *store.FindCollectiveFact) ([]*store.CollectiveFact, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.ContentHash != nil {
		where, args = append(where, "content_hash = ?"), append(args, *find.ContentHash)
	}
	if find.Category != nil {
		where, args = append(where, "category = ?"), append(args, *find.Category)
	}
	if find.PromotedOnly {
		where = append(where, "is_promoted = 1")
	}

	query := `SELECT ` + collectiveFactColumns + ` FROM collective_fact
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY confidence DESC, source_count DESC, id ASC`

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if find.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list collective facts")
	}
	defer rows.Close()

	list := make([]*store.CollectiveFact, 0)
	for rows.Next() {
		fact, err := scanCollectiveFact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan collective fact")
		}
		list = append(list, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate collective facts")
	}

	return list, nil
}

func (d *DB) DeleteCollectiveFact(ctx context.Context, delete *store.DeleteCollectiveFact) error {
	if delete == nil || delete.ID == nil {
		return errors.New("delete parameter requires an id")
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM collective_fact WHERE id = ?`, *delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete collective fact")
	}
	return nil
}

func (d *DB) GetCollectiveFactStats(ctx context.Context) (*store.CollectiveFactStats, error) {
	stats := &store.CollectiveFactStats{ByCategory: map[string]int{}}

	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_promoted THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_promoted THEN 0 ELSE 1 END), 0)
		FROM collective_fact`,
	).Scan(&stats.TotalFacts, &stats.PromotedFacts, &stats.PendingFacts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate collective fact stats")
	}

	rows, err := d.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM collective_fact GROUP BY category`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate facts by category")
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, errors.Wrap(err, "failed to scan category count")
		}
		stats.ByCategory[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate category counts")
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollectiveFact(row rowScanner) (*store.CollectiveFact, error) {
	fact := &store.CollectiveFact{}
	var firstLearnedTs, lastConfirmedTs int64
	var metadata []byte
	if err := row.Scan(
		&fact.ID,
		&fact.Content,
		&fact.ContentHash,
		&fact.Category,
		&fact.Confidence,
		&fact.SourceCount,
		&fact.IsPromoted,
		&firstLearnedTs,
		&lastConfirmedTs,
		&metadata,
	); err != nil {
		return nil, err
	}
	fact.FirstLearnedAt = time.Unix(firstLearnedTs, 0).UTC()
	fact.LastConfirmedAt = time.Unix(lastConfirmedTs, 0).UTC()
	fact.Metadata = unmarshalMetadata(metadata)
	return fact, nil
}
