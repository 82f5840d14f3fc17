package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/consiglia/memoria/store"
)

func (d *DB) CreateEpisodicEvent(ctx context.Context, create *store.EpisodicEvent) (*store.EpisodicEvent, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	create.UpdatedTs = create.CreatedTs

	relatedEntities, err := marshalJSON(create.RelatedEntities, "[]")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal related entities")
	}
	metadata, err := marshalJSON(create.Metadata, "{}")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	fields := []string{"user_id", "title", "description", "event_type", "emotion", "occurred_at", "related_entities", "metadata", "created_ts", "updated_ts"}
	args := []any{
		create.UserID,
		create.Title,
		create.Description,
		string(create.EventType),
		string(create.Emotion),
		create.OccurredAt,
		relatedEntities,
		metadata,
		create.CreatedTs,
		create.UpdatedTs,
	}

	stmt := `INSERT INTO episodic_event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create episodic event")
	}

	return create, nil
}

func (d *DB) ListEpisodicEvents(ctx context.Context, find *store.FindEpisodicEvent) ([]*store.EpisodicEvent, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.EventType != nil {
		where, args = append(where, "event_type = "+placeholder(len(args)+1)), append(args, string(*find.EventType))
	}
	if find.Emotion != nil {
		where, args = append(where, "emotion = "+placeholder(len(args)+1)), append(args, string(*find.Emotion))
	}
	if find.OccurredAfter != nil {
		where, args = append(where, "occurred_at >= "+placeholder(len(args)+1)), append(args, *find.OccurredAfter)
	}
	if find.OccurredBefore != nil {
		where, args = append(where, "occurred_at <= "+placeholder(len(args)+1)), append(args, *find.OccurredBefore)
	}

	query := `SELECT id, user_id, title, description, event_type, emotion, occurred_at, related_entities, metadata, created_ts, updated_ts
		FROM episodic_event WHERE ` + strings.Join(where, " AND ") + ` ORDER BY occurred_at DESC, id DESC`

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000 // Cap to prevent excessive data retrieval
		}
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, limit)
	}
	if find.Offset > 0 {
		query += " OFFSET " + placeholder(len(args)+1)
		args = append(args, find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list episodic events")
	}
	defer rows.Close()

	list := make([]*store.EpisodicEvent, 0)
	for rows.Next() {
		event := &store.EpisodicEvent{}
		var eventType, emotion string
		var relatedEntities, metadata []byte
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Title,
			&event.Description,
			&eventType,
			&emotion,
			&event.OccurredAt,
			&relatedEntities,
			&metadata,
			&event.CreatedTs,
			&event.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan episodic event")
		}
		event.EventType = store.EventType(eventType)
		event.Emotion = store.Emotion(emotion)
		event.RelatedEntities = unmarshalStringSlice(relatedEntities)
		event.Metadata = unmarshalMetadata(metadata)
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate episodic events")
	}

	return list, nil
}

func (d *DB) DeleteEpisodicEvents(ctx context.Context, delete *store.DeleteEpisodicEvent) (int64, error) {
	if delete == nil || delete.ID == nil {
		return 0, errors.New("delete parameter requires an id")
	}

	where, args := []string{}, []any{}
	where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	if delete.UserID != nil {
		// Ownership check happens in the predicate: a mismatched user
		// deletes nothing.
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *delete.UserID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM episodic_event WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete episodic event")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read delete rows affected")
	}
	return rows, nil
}
