package app

import (
	"context"
	"testing"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) claim(auctionID, caller uuid.UUID) (*auction.Transfer, error) {
	return h.settlement.Claim(context.Background(), inbound.SettlementRequest{AuctionID: auctionID, CallerID: caller})
}

func (h *harness) withdrawAll(auctionID, caller uuid.UUID) (*auction.Transfer, error) {
	return h.settlement.WithdrawAll(context.Background(), inbound.SettlementRequest{AuctionID: auctionID, CallerID: caller})
}

// assertJournalBalances checks that value in minus value out equals what the
// auction still holds
func assertJournalBalances(t *testing.T, h *harness, auctionID uuid.UUID) {
	t.Helper()
	transfers, err := h.settlement.GetTransfers(context.Background(), auctionID)
	require.NoError(t, err)

	net := decimal.Zero
	for _, tr := range transfers {
		if tr.Direction == auction.DirectionIn {
			net = net.Add(tr.Amount)
		} else {
			net = net.Sub(tr.Amount)
		}
	}

	summary, err := h.auctions.GetAuction(context.Background(), auctionID)
	require.NoError(t, err)
	assert.True(t, summary.BalanceOfContract.Equal(net), "balance %s != journal %s", summary.BalanceOfContract, net)
}

func TestSettlementService_Claim(t *testing.T) {
	h := newHarness()
	auctionID := h.deploy(t, uuid.New(), time.Minute, 0)
	alice, bob := uuid.New(), uuid.New()
	h.bid(t, auctionID, alice, 3)
	h.bid(t, auctionID, bob, 5)

	transfer, err := h.claim(auctionID, alice)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, transfer.ID)
	assert.Equal(t, alice, transfer.Party)
	assert.Equal(t, auction.DirectionOut, transfer.Direction)
	assert.Equal(t, auction.ReasonClaim, transfer.Reason)
	assert.True(t, transfer.Amount.Equal(dec(3)))

	event := h.broadcaster.last()
	assert.Equal(t, outbound.EventTypeFundsClaimed, event.Type)
	assert.Equal(t, "Claimed", event.Data["event"])
	assert.Equal(t, "0", event.Data["pending"])
	assert.Equal(t, transfer.ID.String(), event.Data["transfer_id"])

	_, err = h.claim(auctionID, alice)
	assert.ErrorIs(t, err, shared.ErrNotABuyer)

	_, err = h.claim(auctionID, bob)
	assert.ErrorIs(t, err, shared.ErrNothingToClaim)

	_, err = h.claim(auctionID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotABuyer)

	assertJournalBalances(t, h, auctionID)
}

func TestSettlementService_Claim_TransferFailureRollsBack(t *testing.T) {
	h := newHarness()
	auctionID := h.deploy(t, uuid.New(), time.Minute, 0)
	alice, bob := uuid.New(), uuid.New()
	h.bid(t, auctionID, alice, 3)
	h.bid(t, auctionID, bob, 5)
	before := h.store.state(auctionID)
	eventsBefore := len(h.broadcaster.types())

	h.store.transferErr = assert.AnError
	_, err := h.claim(auctionID, alice)
	assert.ErrorIs(t, err, shared.ErrTransferFailed)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, before, h.store.state(auctionID))
	assert.Len(t, h.broadcaster.types(), eventsBefore)

	h.store.transferErr = nil
	transfer, err := h.claim(auctionID, alice)
	require.NoError(t, err)
	assert.True(t, transfer.Amount.Equal(dec(3)))
}

func TestSettlementService_WithdrawAll(t *testing.T) {
	h := newHarness()
	owner, alice, bob := uuid.New(), uuid.New(), uuid.New()
	auctionID := h.deploy(t, owner, 10*time.Second, 0)
	h.bid(t, auctionID, alice, 3)
	h.bid(t, auctionID, bob, 5)

	_, err := h.withdrawAll(auctionID, bob)
	assert.ErrorIs(t, err, shared.ErrNotOwner)

	_, err = h.withdrawAll(auctionID, owner)
	assert.ErrorIs(t, err, shared.ErrAuctionOngoing)

	h.clock.Advance(10 * time.Second)

	transfer, err := h.withdrawAll(auctionID, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, transfer.Party)
	assert.Equal(t, auction.ReasonSettlement, transfer.Reason)
	assert.True(t, transfer.Amount.Equal(dec(5)))
	assert.Equal(t, outbound.EventTypeFundsWithdrawn, h.broadcaster.last().Type)

	_, err = h.withdrawAll(auctionID, owner)
	assert.ErrorIs(t, err, shared.ErrAlreadyWithdrawn)

	// the winner's committed value went to the owner
	_, err = h.claim(auctionID, bob)
	assert.ErrorIs(t, err, shared.ErrNotABuyer)

	// outbid balances remain claimable after settlement
	refund, err := h.claim(auctionID, alice)
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(dec(3)))

	summary, err := h.auctions.GetAuction(context.Background(), auctionID)
	require.NoError(t, err)
	assert.True(t, summary.BalanceOfContract.IsZero())
	assert.True(t, summary.Withdrawn)
	require.NotNil(t, summary.Winner)
	assert.Equal(t, bob, *summary.Winner)

	assertJournalBalances(t, h, auctionID)
}

func TestSettlementService_WithdrawAll_NoBids(t *testing.T) {
	h := newHarness()
	owner := uuid.New()
	auctionID := h.deploy(t, owner, 0, 0)

	_, err := h.withdrawAll(auctionID, owner)
	assert.ErrorIs(t, err, shared.ErrNoBids)
}

func TestSettlementService_Scenario(t *testing.T) {
	h := newHarness()
	owner := uuid.New()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	auctionID := h.deploy(t, owner, time.Minute, 1)

	h.bid(t, auctionID, alice, 2)
	h.bid(t, auctionID, bob, 4)
	h.bid(t, auctionID, alice, 5)
	h.bid(t, auctionID, carol, 8)
	h.bid(t, auctionID, bob, 9)

	_, err := h.claim(auctionID, carol)
	require.NoError(t, err)
	assertJournalBalances(t, h, auctionID)

	h.clock.Advance(time.Minute)
	_, err = h.bids.PlaceBid(context.Background(), inbound.PlaceBidRequest{AuctionID: auctionID, BidderID: carol, Amount: dec(100)})
	assert.ErrorIs(t, err, shared.ErrAuctionClosed)

	transfer, err := h.withdrawAll(auctionID, owner)
	require.NoError(t, err)
	assert.True(t, transfer.Amount.Equal(dec(13)))

	refund, err := h.claim(auctionID, alice)
	require.NoError(t, err)
	assert.True(t, refund.Amount.Equal(dec(7)))

	assertJournalBalances(t, h, auctionID)

	transfers, err := h.settlement.GetTransfers(context.Background(), auctionID)
	require.NoError(t, err)
	assert.Len(t, transfers, 8)
}

func TestSettlementService_GetTransfers_UnknownAuction(t *testing.T) {
	h := newHarness()

	_, err := h.settlement.GetTransfers(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrAuctionNotFound)
}
