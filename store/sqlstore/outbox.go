package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// OUTBOX
// =============================================================================

// AppendOutbox records an event inside the current unit of work.
func (c *conn) AppendOutbox(ctx context.Context, e pos.OutboxEvent) error {
	_, err := c.exec(ctx, `
		INSERT INTO outbox_events
		(id, event_type, aggregate_id, payload, status, attempts, last_error, created_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.AggregateID, string(e.Payload), e.Status, e.Attempts, e.LastError,
		formatTime(e.CreatedAt), nullTime(e.PublishedAt))
	return writeError("append outbox event", err)
}

// PendingOutbox returns up to limit unpublished events, oldest first.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]pos.OutboxEvent, error) {
	query, args := paginate(`
		SELECT id, event_type, aggregate_id, payload, status, attempts, last_error, created_at, published_at
		FROM outbox_events
		WHERE status = ?
		ORDER BY created_at ASC, id ASC`, []any{pos.OutboxPending}, limit, 0)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	events := []pos.OutboxEvent{}
	for rows.Next() {
		var (
			e         pos.OutboxEvent
			payload   string
			createdAt string
			published sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &payload, &e.Status, &e.Attempts,
			&e.LastError, &createdAt, &published); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		e.CreatedAt = parseTime(createdAt)
		e.PublishedAt = parseNullTime(published)
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkPublished flags the given events as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(c *conn) error {
		at := formatTime(now())
		for _, id := range ids {
			_, err := c.exec(ctx, `
				UPDATE outbox_events SET status = ?, published_at = ?, attempts = attempts + 1, last_error = ''
				WHERE id = ?`, pos.OutboxPublished, at, id)
			if err != nil {
				return writeError("mark outbox published", err)
			}
		}
		return nil
	})
}

// MarkFailed records a failed delivery attempt. The event stays pending
// until it has failed maxAttempts times, then it is parked as failed.
func (s *Store) MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.exec(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`,
		msg, maxAttempts, pos.OutboxFailed, id)
	return writeError("mark outbox failed", err)
}
