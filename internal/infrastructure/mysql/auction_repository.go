package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"dutch-auction-system/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLAuctionRepository stores one row per auction: the full aggregate
// snapshot as JSON plus the version column used for the compare-and-swap.
// Outbox entries produced by the same command are appended inside the
// same transaction, so events are never persisted without their state
// change or vice versa.
type MySQLAuctionRepository struct {
	db *sql.DB
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) Insert(ctx context.Context, auction *domain.Auction, entries []*domain.OutboxEntry) error {
	state, err := json.Marshal(auction)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO auctions (tenant_id, id, state, status, end_at, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = tx.ExecContext(ctx, query,
		auction.TenantID, auction.ID, state, int(auction.Status),
		auction.EndAt, auction.Version, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return err
	}

	if err := appendOutbox(ctx, tx, entries); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *MySQLAuctionRepository) Get(ctx context.Context, tenantID, auctionID string) (*domain.Auction, error) {
	query := `SELECT state FROM auctions WHERE tenant_id = ? AND id = ?`

	var state []byte
	err := r.db.QueryRowContext(ctx, query, tenantID, auctionID).Scan(&state)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	var auction domain.Auction
	if err := json.Unmarshal(state, &auction); err != nil {
		return nil, err
	}
	return &auction, nil
}

// Save is the CAS write: the UPDATE only matches when the stored version
// is still the one the aggregate was loaded at. Zero rows affected means
// a concurrent command won the race.
func (r *MySQLAuctionRepository) Save(ctx context.Context, auction *domain.Auction, loadedVersion int64, entries []*domain.OutboxEntry) error {
	state, err := json.Marshal(auction)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        UPDATE auctions SET state = ?, status = ?, end_at = ?, version = ?, updated_at = ?
        WHERE tenant_id = ? AND id = ? AND version = ?
    `
	result, err := tx.ExecContext(ctx, query,
		state, int(auction.Status), auction.EndAt, auction.Version, time.Now(),
		auction.TenantID, auction.ID, loadedVersion)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrencyConflict
	}

	if err := appendOutbox(ctx, tx, entries); err != nil {
		return err
	}

	return tx.Commit()
}

// ListRunning returns every auction that may need a price snapshot or a
// time-based transition (Scheduled, Published or Active).
func (r *MySQLAuctionRepository) ListRunning(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT state FROM auctions WHERE status IN (?, ?, ?)`

	rows, err := r.db.QueryContext(ctx, query,
		int(domain.AuctionScheduled), int(domain.AuctionPublished), int(domain.AuctionActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}

		var auction domain.Auction
		if err := json.Unmarshal(state, &auction); err != nil {
			return nil, err
		}
		auctions = append(auctions, &auction)
	}

	return auctions, rows.Err()
}

func appendOutbox(ctx context.Context, tx *sql.Tx, entries []*domain.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
        INSERT INTO outbox (event_id, tenant_id, auction_id, event_type, payload, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, query,
			entry.EventID, entry.TenantID, entry.AuctionID,
			string(entry.EventType), entry.Payload, entry.OccurredAt)
		if err != nil {
			return err
		}
	}
	return nil
}
