package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	start_time TIMESTAMP WITH TIME ZONE NOT NULL,
	duration_ns BIGINT NOT NULL,
	end_time TIMESTAMP WITH TIME ZONE NOT NULL,
	starting_price NUMERIC(78, 18) NOT NULL,
	highest_bid NUMERIC(78, 18) NOT NULL,
	highest_bidder UUID,
	withdrawn BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pending_balances (
	auction_id UUID NOT NULL REFERENCES auctions(id),
	participant_id UUID NOT NULL,
	amount NUMERIC(78, 18) NOT NULL CHECK (amount >= 0),
	PRIMARY KEY (auction_id, participant_id)
);

CREATE TABLE IF NOT EXISTS bids (
	id UUID PRIMARY KEY,
	auction_id UUID NOT NULL REFERENCES auctions(id),
	bidder_id UUID NOT NULL,
	amount NUMERIC(78, 18) NOT NULL,
	committed NUMERIC(78, 18) NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id UUID PRIMARY KEY,
	auction_id UUID NOT NULL REFERENCES auctions(id),
	direction VARCHAR(8) NOT NULL,
	party_id UUID NOT NULL,
	amount NUMERIC(78, 18) NOT NULL,
	reason VARCHAR(16) NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transfers_auction ON transfers(auction_id, created_at);
`

// Migrate creates the tables if they do not exist
func (client *Connection) Migrate(ctx context.Context) error {
	if _, err := client.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
