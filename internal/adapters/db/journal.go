package db

import (
	"context"
	"database/sql"
	"fmt"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
)

// txJournal implements outbound.Journal on top of an open transaction
type txJournal struct {
	tx *sql.Tx
}

// RecordTransfer appends a transfer to the outbox drained by the payment executor
func (j *txJournal) RecordTransfer(ctx context.Context, transfer *auction.Transfer) error {
	query := `
		INSERT INTO transfers (id, auction_id, direction, party_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := j.tx.ExecContext(ctx, query,
		transfer.ID,
		transfer.AuctionID,
		transfer.Direction,
		transfer.Party,
		transfer.Amount,
		transfer.Reason,
		transfer.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// RecordBid appends an accepted bid to the history
func (j *txJournal) RecordBid(ctx context.Context, b *bid.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, committed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := j.tx.ExecContext(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		b.Amount,
		b.Committed,
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}
	return nil
}
