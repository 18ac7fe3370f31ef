package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const auctionColumns = `id, owner_id, start_time, duration_ns, starting_price, highest_bid, highest_bidder, withdrawn, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuctionState(row rowScanner) (*auction.State, error) {
	var (
		state      auction.State
		durationNs int64
		bidder     uuid.NullUUID
	)
	err := row.Scan(
		&state.ID,
		&state.Owner,
		&state.StartTime,
		&durationNs,
		&state.StartingPrice,
		&state.HighestBid,
		&bidder,
		&state.Withdrawn,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.Duration = time.Duration(durationNs)
	if bidder.Valid {
		leader := bidder.UUID
		state.HighestBidder = &leader
	}
	state.Pending = make(map[uuid.UUID]decimal.Decimal)
	return &state, nil
}

// Create stores a newly deployed auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (id, owner_id, start_time, duration_ns, end_time, starting_price, highest_bid, highest_bidder, withdrawn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	state := a.Snapshot()
	_, err := r.conn.GetDB().ExecContext(ctx, query,
		state.ID,
		state.Owner,
		state.StartTime,
		int64(state.Duration),
		a.EndTime(),
		state.StartingPrice,
		state.HighestBid,
		nullUUID(state.HighestBidder),
		state.Withdrawn,
		state.StartTime,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction with its ledger entries
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	state, err := scanAuctionState(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	if err := loadPending(ctx, r.conn.GetDB(), map[uuid.UUID]*auction.State{state.ID: state}); err != nil {
		return nil, err
	}

	return auction.Restore(*state)
}

// List retrieves up to limit auctions after skipping offset, newest first
func (r *AuctionRepository) List(ctx context.Context, limit, offset int) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var ordered []*auction.State
	byID := make(map[uuid.UUID]*auction.State)
	for rows.Next() {
		state, err := scanAuctionState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		ordered = append(ordered, state)
		byID[state.ID] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	if len(ordered) == 0 {
		return nil, nil
	}
	if err := loadPending(ctx, r.conn.GetDB(), byID); err != nil {
		return nil, err
	}

	auctions := make([]*auction.Auction, 0, len(ordered))
	for _, state := range ordered {
		a, err := auction.Restore(*state)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, nil
}

/*
Execute runs fn against an exclusively locked auction.
 1. Locks the auction row with SELECT ... FOR UPDATE
 2. Rebuilds the ledger from the row and its pending balances
 3. Runs fn, which may append to the journal inside the same transaction
 4. Persists the new ledger state, or rolls everything back if any step failed
*/
func (r *AuctionRepository) Execute(ctx context.Context, id uuid.UUID, fn outbound.ExecuteFunc) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`

		state, err := scanAuctionState(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}

		if err := loadPending(ctx, tx, map[uuid.UUID]*auction.State{state.ID: state}); err != nil {
			return err
		}

		a, err := auction.Restore(*state)
		if err != nil {
			return err
		}

		if err := fn(ctx, a, &txJournal{tx: tx}); err != nil {
			return err
		}

		return saveState(ctx, tx, *state, a.Snapshot())
	})
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadPending fills the pending balances of every state in byID
func loadPending(ctx context.Context, q querier, byID map[uuid.UUID]*auction.State) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id.String())
	}

	query := `
		SELECT auction_id, participant_id, amount
		FROM pending_balances
		WHERE auction_id = ANY($1::uuid[])
	`
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get pending balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			auctionID   uuid.UUID
			participant uuid.UUID
			amount      decimal.Decimal
		)
		if err := rows.Scan(&auctionID, &participant, &amount); err != nil {
			return fmt.Errorf("failed to scan pending balance: %w", err)
		}
		if state, ok := byID[auctionID]; ok {
			state.Pending[participant] = amount
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating pending balances: %w", err)
	}
	return nil
}

// saveState writes the mutable part of the ledger. Only pending balances that
// differ from before are written.
func saveState(ctx context.Context, tx *sql.Tx, before, state auction.State) error {
	updateQuery := `
		UPDATE auctions
		SET highest_bid = $2, highest_bidder = $3, withdrawn = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, updateQuery,
		state.ID,
		state.HighestBid,
		nullUUID(state.HighestBidder),
		state.Withdrawn,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}

	upsertQuery := `
		INSERT INTO pending_balances (auction_id, participant_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (auction_id, participant_id) DO UPDATE SET amount = EXCLUDED.amount
	`
	for participant, amount := range state.Pending {
		if prev, ok := before.Pending[participant]; ok && prev.Equal(amount) {
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertQuery, state.ID, participant, amount); err != nil {
			return fmt.Errorf("failed to save pending balance: %w", err)
		}
	}

	return nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
