package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"dutch-auction-system/internal/domain"
)

type MySQLOutboxRepository struct {
	db *sql.DB
}

func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{db: db}
}

// FetchUndispatched returns pending entries in insertion order, so a
// sale and the auction end it triggered reach consumers in causal order.
func (r *MySQLOutboxRepository) FetchUndispatched(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	query := `
        SELECT event_id, tenant_id, auction_id, event_type, payload, occurred_at
        FROM outbox
        WHERE dispatched_at IS NULL
        ORDER BY seq ASC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var entry domain.OutboxEntry
		var eventType string

		err := rows.Scan(&entry.EventID, &entry.TenantID, &entry.AuctionID,
			&eventType, &entry.Payload, &entry.OccurredAt)
		if err != nil {
			return nil, err
		}

		entry.EventType = domain.EventType(eventType)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *MySQLOutboxRepository) MarkDispatched(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(eventIDs))
	placeholders = placeholders[:len(placeholders)-1]

	query := `UPDATE outbox SET dispatched_at = ? WHERE event_id IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(eventIDs)+1)
	args = append(args, time.Now())
	for _, id := range eventIDs {
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
