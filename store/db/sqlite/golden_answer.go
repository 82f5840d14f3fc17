package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

func (d *DB) UpsertGoldenAnswer(ctx context.Context, upsert *store.GoldenAnswer) (*store.GoldenAnswer, error) {
	if upsert.ClusterID == "" {
		return nil, errors.New("cluster id cannot be empty")
	}
	sources, err := marshalJSON(upsert.Sources, "[]")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal sources")
	}
	var embedding any
	if len(upsert.Embedding) > 0 {
		raw, err := json.Marshal(upsert.Embedding)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal canonical embedding")
		}
		embedding = string(raw)
	}

	var lastUsedTs sql.NullInt64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO golden_answer (cluster_id, canonical_question, normalized_question, canonical_embedding, answer, sources, confidence, usage_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (cluster_id) DO UPDATE SET
			canonical_question = EXCLUDED.canonical_question,
			normalized_question = EXCLUDED.normalized_question,
			canonical_embedding = EXCLUDED.canonical_embedding,
			answer = EXCLUDED.answer,
			sources = EXCLUDED.sources,
			confidence = EXCLUDED.confidence
		RETURNING usage_count, last_used_ts`,
		upsert.ClusterID,
		upsert.CanonicalQuestion,
		upsert.NormalizedQuestion,
		embedding,
		upsert.Answer,
		string(sources),
		upsert.Confidence,
	).Scan(&upsert.UsageCount, &lastUsedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert golden answer")
	}
	if lastUsedTs.Valid {
		lastUsed := time.Unix(lastUsedTs.Int64, 0).UTC()
		upsert.LastUsed = &lastUsed
	} else {
		upsert.LastUsed = nil
	}

	return upsert, nil
}

func (d *DB) ListGoldenAnswers(ctx context.Context, find *store.FindGoldenAnswer) ([]*store.GoldenAnswer, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ClusterID != nil {
		where, args = append(where, "cluster_id = ?"), append(args, *find.ClusterID)
	}
	if find.NormalizedQuestion != nil {
		where, args = append(where, "normalized_question = ?"), append(args, *find.NormalizedQuestion)
	}
	embeddingColumn := "NULL"
	if find.WithEmbeddings {
		embeddingColumn = "canonical_embedding"
		where = append(where, "canonical_embedding IS NOT NULL")
	}

	query := `SELECT cluster_id, canonical_question, normalized_question, ` + embeddingColumn + `, answer, sources, confidence, usage_count, last_used_ts
		FROM golden_answer
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY usage_count DESC, cluster_id ASC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list golden answers")
	}
	defer rows.Close()

	list := make([]*store.GoldenAnswer, 0)
	for rows.Next() {
		answer := &store.GoldenAnswer{}
		var embedding, sources sql.NullString
		var lastUsedTs sql.NullInt64
		if err := rows.Scan(
			&answer.ClusterID,
			&answer.CanonicalQuestion,
			&answer.NormalizedQuestion,
			&embedding,
			&answer.Answer,
			&sources,
			&answer.Confidence,
			&answer.UsageCount,
			&lastUsedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan golden answer")
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &answer.Embedding); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal canonical embedding")
			}
		}
		if sources.Valid {
			answer.Sources = unmarshalStringSlice([]byte(sources.String))
		}
		if lastUsedTs.Valid {
			lastUsed := time.Unix(lastUsedTs.Int64, 0).UTC()
			answer.LastUsed = &lastUsed
		}
		list = append(list, answer)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate golden answers")
	}

	return list, nil
}

func (d *DB) TouchGoldenAnswer(ctx context.Context, clusterID string) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE golden_answer SET usage_count = usage_count + 1, last_used_ts = ?
		WHERE cluster_id = ?`,
		time.Now().Unix(), clusterID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to touch golden answer")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read touch rows affected")
	}
	if affected == 0 {
		return errors.Errorf("golden answer not found: %s", clusterID)
	}
	return nil
}

func (d *DB) GetGoldenAnswerStats(ctx context.Context) (*store.GoldenAnswerStats, error) {
	stats := &store.GoldenAnswerStats{}

	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(usage_count), 0), COALESCE(AVG(confidence), 0)
		FROM golden_answer`,
	).Scan(&stats.TotalGoldenAnswers, &stats.TotalHits, &stats.AvgConfidence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate golden answer stats")
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT cluster_id, canonical_question, usage_count
		FROM golden_answer
		ORDER BY usage_count DESC, cluster_id ASC
		LIMIT 10`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list top golden answers")
	}
	defer rows.Close()

	for rows.Next() {
		usage := &store.GoldenAnswerUsage{}
		if err := rows.Scan(&usage.ClusterID, &usage.CanonicalQuestion, &usage.UsageCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan golden answer usage")
		}
		stats.TopByUsage = append(stats.TopByUsage, usage)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate golden answer usage")
	}

	return stats, nil
}
