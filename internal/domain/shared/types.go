package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionCloseResult describes an auction whose end time has passed
type AuctionCloseResult struct {
	AuctionID  uuid.UUID
	WinnerID   *uuid.UUID
	HighestBid decimal.Decimal
	EndTime    time.Time
}
