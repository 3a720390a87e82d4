package market

import (
	"time"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// Event is a marketplace state change notification. Events are emitted in
// execution order, once per applied call, after the call has committed.
// Aborted calls emit nothing.
type Event interface {
	EventType() string
}

// Publisher receives committed events. Delivery is at-least-once; consumers
// (the off-chain indexer, websocket subscribers) must tolerate duplicates.
type Publisher interface {
	Publish(ev Event)
}

// ListingCreatedEvent is emitted when a seller places an asset into custody at
// a fixed price.
type ListingCreatedEvent struct {
	Seller AccountID       `json:"seller"`
	Asset  AssetRef        `json:"asset"`
	Price  currency.Amount `json:"price"`
}

func (ListingCreatedEvent) EventType() string { return "listingCreated" }

type ListingUpdatedEvent struct {
	Seller   AccountID       `json:"seller"`
	Asset    AssetRef        `json:"asset"`
	NewPrice currency.Amount `json:"new_price"`
}

func (ListingUpdatedEvent) EventType() string { return "listingUpdated" }

type ListingCancelledEvent struct {
	Seller AccountID `json:"seller"`
	Asset  AssetRef  `json:"asset"`
}

func (ListingCancelledEvent) EventType() string { return "listingCancelled" }

// PurchasedEvent is emitted when a fixed-price sale settles.
type PurchasedEvent struct {
	Buyer AccountID       `json:"buyer"`
	Asset AssetRef        `json:"asset"`
	Price currency.Amount `json:"price"`
}

func (PurchasedEvent) EventType() string { return "purchased" }

type AuctionCreatedEvent struct {
	Seller       AccountID       `json:"seller"`
	Asset        AssetRef        `json:"asset"`
	ReservePrice currency.Amount `json:"reserve_price"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
}

func (AuctionCreatedEvent) EventType() string { return "auctionCreated" }

type BidPlacedEvent struct {
	Bidder AccountID       `json:"bidder"`
	Asset  AssetRef        `json:"asset"`
	Amount currency.Amount `json:"amount"`
}

func (BidPlacedEvent) EventType() string { return "bidPlaced" }

// AuctionSettledEvent is emitted for both outcomes: Winner is empty and Amount
// zero when the auction closed without a sale.
type AuctionSettledEvent struct {
	Winner AccountID       `json:"winner,omitempty"`
	Asset  AssetRef        `json:"asset"`
	Amount currency.Amount `json:"amount"`
}

func (AuctionSettledEvent) EventType() string { return "auctionSettled" }

type ProtocolFeeUpdatedEvent struct {
	OldBps uint32 `json:"old_bps"`
	NewBps uint32 `json:"new_bps"`
}

func (ProtocolFeeUpdatedEvent) EventType() string { return "protocolFeeUpdated" }

type FeeRecipientUpdatedEvent struct {
	Old AccountID `json:"old"`
	New AccountID `json:"new"`
}

func (FeeRecipientUpdatedEvent) EventType() string { return "feeRecipientUpdated" }

type RoyaltyUpdatedEvent struct {
	Collection string    `json:"collection"`
	Recipient  AccountID `json:"recipient"`
	Bps        uint32    `json:"bps"`
}

func (RoyaltyUpdatedEvent) EventType() string { return "royaltyUpdated" }

type CollectionAllowedUpdatedEvent struct {
	Collection string `json:"collection"`
	Allowed    bool   `json:"allowed"`
}

func (CollectionAllowedUpdatedEvent) EventType() string { return "collectionAllowedUpdated" }

type OwnershipTransferredEvent struct {
	Old AccountID `json:"old"`
	New AccountID `json:"new"`
}

func (OwnershipTransferredEvent) EventType() string { return "ownershipTransferred" }
