package db

import (
	"context"
	"fmt"

	"auction-ledger-service/internal/domain/auction"

	"github.com/google/uuid"
)

// TransferRepository reads the transfer journal
type TransferRepository struct {
	conn *Connection
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(conn *Connection) *TransferRepository {
	return &TransferRepository{conn: conn}
}

// GetByAuctionID retrieves all transfers of an auction, oldest first
func (r *TransferRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auction.Transfer, error) {
	query := `
		SELECT id, auction_id, direction, party_id, amount, reason, created_at
		FROM transfers
		WHERE auction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*auction.Transfer
	for rows.Next() {
		var t auction.Transfer
		if err := rows.Scan(&t.ID, &t.AuctionID, &t.Direction, &t.Party, &t.Amount, &t.Reason, &t.At); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return transfers, nil
}
