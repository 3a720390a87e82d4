package market

import (
	"sync"
	"time"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// AuctionState is the per-auction state machine:
// Created -> Active -> {SettledSold | SettledNoSale}. There is no transition
// back. Created and Active are the same stored record; the split is purely
// the start-time check at bid time.
type AuctionState int

const (
	AuctionActive AuctionState = iota
	AuctionSettledSold
	AuctionSettledNoSale
)

func (s AuctionState) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionSettledSold:
		return "settledSold"
	case AuctionSettledNoSale:
		return "settledNoSale"
	}
	return "unknown"
}

// Auction is a time-bound ascending sale for one asset. While unsettled the
// engine escrows the current highest bid; the previous highest bidder is
// always refunded before a new bid is taken.
type Auction struct {
	Seller        AccountID       `json:"seller"`
	Asset         AssetRef        `json:"asset"`
	ReservePrice  currency.Amount `json:"reserve_price"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	HighestBidder AccountID       `json:"highest_bidder,omitempty"`
	HighestBid    currency.Amount `json:"highest_bid"`
	State         AuctionState    `json:"state"`
}

// Settled reports whether the auction reached a terminal state.
func (a *Auction) Settled() bool {
	return a.State != AuctionActive
}

// AuctionBook tracks auctions keyed by asset reference. One unsettled auction
// per asset; the facade enforces the cross-book check before Create.
type AuctionBook struct {
	mu       sync.RWMutex
	auctions map[string]*Auction
}

func NewAuctionBook() *AuctionBook {
	return &AuctionBook{auctions: make(map[string]*Auction)}
}

// Get returns a copy of the auction for an asset, settled or not.
func (b *AuctionBook) Get(ref AssetRef) (Auction, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.auctions[ref.Key()]
	if !ok {
		return Auction{}, false
	}
	return *a, true
}

// HasActive reports whether an unsettled auction exists for the asset.
func (b *AuctionBook) HasActive(ref AssetRef) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.auctions[ref.Key()]
	return ok && !a.Settled()
}

// ValidateWindow checks auction creation times against now.
func ValidateWindow(start, end, now time.Time) Result {
	if !start.Before(end) {
		return InvalidTimeRange
	}
	if start.Before(now) {
		return InvalidTimeRange
	}
	return Success
}

// Create records a new auction. The facade has already validated the terms,
// taken custody and verified the asset is not busy.
func (b *AuctionBook) Create(ref AssetRef, seller AccountID, reserve currency.Amount, start, end time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auctions[ref.Key()] = &Auction{
		Seller:       seller,
		Asset:        ref,
		ReservePrice: reserve,
		StartTime:    start,
		EndTime:      end,
		State:        AuctionActive,
	}
}

// CheckBid validates a prospective bid without mutating anything. It returns
// the previous highest bidder and amount so the facade can refund before it
// records the new bid.
func (b *AuctionBook) CheckBid(ref AssetRef, amount currency.Amount, now time.Time) (prevBidder AccountID, prevBid currency.Amount, res Result) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.auctions[ref.Key()]
	if !ok || a.Settled() {
		return "", 0, AuctionNotActive
	}
	if now.Before(a.StartTime) {
		return "", 0, AuctionNotStarted
	}
	if !now.Before(a.EndTime) {
		return "", 0, AuctionEnded
	}
	if amount < a.ReservePrice {
		return "", 0, BidTooLow
	}
	// Strict increase. A tie is rejected, not treated as an outbid: the
	// first qualifying bid at a level wins.
	if !a.HighestBid.IsZero() && amount <= a.HighestBid {
		return "", 0, BidTooLow
	}
	return a.HighestBidder, a.HighestBid, Success
}

// RecordBid installs a new highest bid. Called by the facade after the refund
// of the previous bidder and the escrow of the new amount both succeeded.
func (b *AuctionBook) RecordBid(ref AssetRef, bidder AccountID, amount currency.Amount) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.auctions[ref.Key()]
	if !ok || a.Settled() {
		return AuctionNotActive
	}
	a.HighestBidder = bidder
	a.HighestBid = amount
	return Success
}

// CheckSettle validates that an auction can be settled now and returns a copy
// of its terms. Settlement is permissionless: any caller may close an ended
// auction, which keeps the book live without depending on the seller.
func (b *AuctionBook) CheckSettle(ref AssetRef, now time.Time) (Auction, Result) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.auctions[ref.Key()]
	if !ok || a.Settled() {
		return Auction{}, AuctionNotActive
	}
	if now.Before(a.EndTime) {
		return Auction{}, AuctionNotActive
	}
	return *a, Success
}

// MarkSettled transitions the auction to a terminal state.
func (b *AuctionBook) MarkSettled(ref AssetRef, sold bool) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.auctions[ref.Key()]
	if !ok || a.Settled() {
		return AuctionNotActive
	}
	if sold {
		a.State = AuctionSettledSold
	} else {
		a.State = AuctionSettledNoSale
	}
	return Success
}

// Snapshot returns copies of all auctions, for persistence.
func (b *AuctionBook) Snapshot() []Auction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Auction, 0, len(b.auctions))
	for _, a := range b.auctions {
		out = append(out, *a)
	}
	return out
}

// Restore loads auctions from a persisted snapshot, replacing book contents.
func (b *AuctionBook) Restore(auctions []Auction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auctions = make(map[string]*Auction, len(auctions))
	for i := range auctions {
		a := auctions[i]
		b.auctions[a.Asset.Key()] = &a
	}
}
