package market

import (
	"time"

	"go.uber.org/zap"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// StateWriter persists committed book entries. The engine calls it after a
// successful mutation; persistence failures are logged, not propagated, since
// the in-memory books remain the authoritative state for the process.
type StateWriter interface {
	PutListing(l Listing) error
	PutAuction(a Auction) error
}

// Options configures a Marketplace.
type Options struct {
	Registry AssetRegistry
	Funds    FundsLedger
	Owner    AccountID
	// FeeBps and FeeRecipient seed the admin configuration.
	FeeBps       uint32
	FeeRecipient AccountID
	// Publisher receives committed events; nil disables emission.
	Publisher Publisher
	// State persists book snapshots; nil disables persistence.
	State StateWriter
	// Now overrides the clock, for deterministic tests.
	Now func() time.Time
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Marketplace is the externally callable surface. It composes the custody
// ledger, the two books, the settlement engine and the admin configuration,
// enforces authorization and state-machine legality, and emits events.
//
// Every state-changing call runs as a single critical section for its asset
// reference; calls for different assets run concurrently. A facade-global
// reentrancy guard rejects calls made from within a payout hook.
type Marketplace struct {
	custody  *CustodyLedger
	funds    FundsLedger
	listings *ListingBook
	auctions *AuctionBook
	admin    *AdminConfig
	settler  *SettlementEngine

	pub   Publisher
	state StateWriter
	now   func() time.Time
	log   *zap.Logger

	guard callGuard
	locks *assetLocks
}

// NewMarketplace wires the engine together.
func NewMarketplace(opts Options) *Marketplace {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Marketplace{
		custody:  NewCustodyLedger(opts.Registry),
		funds:    opts.Funds,
		listings: NewListingBook(),
		auctions: NewAuctionBook(),
		admin:    NewAdminConfig(opts.Owner, opts.FeeBps, opts.FeeRecipient),
		settler:  NewSettlementEngine(opts.Funds),
		pub:      opts.Publisher,
		state:    opts.State,
		now:      now,
		log:      logger,
		locks:    newAssetLocks(),
	}
}

// enter takes the reentrancy guard and, when ref is set, the per-asset lock.
// It returns false with no lock held when the call is reentrant.
func (m *Marketplace) enter(ref *AssetRef) (func(), bool) {
	if !m.guard.enter() {
		return nil, false
	}
	if ref == nil {
		return m.guard.exit, true
	}
	unlock := m.locks.lock(ref.Key())
	return func() {
		unlock()
		m.guard.exit()
	}, true
}

func (m *Marketplace) emit(ev Event) {
	if m.pub != nil {
		m.pub.Publish(ev)
	}
}

func (m *Marketplace) persistListing(ref AssetRef) {
	if m.state == nil {
		return
	}
	if l, ok := m.listings.Get(ref); ok {
		if err := m.state.PutListing(l); err != nil {
			m.log.Error("persist listing failed", zap.String("asset", ref.Key()), zap.Error(err))
		}
	}
}

func (m *Marketplace) persistAuction(ref AssetRef) {
	if m.state == nil {
		return
	}
	if a, ok := m.auctions.Get(ref); ok {
		if err := m.state.PutAuction(a); err != nil {
			m.log.Error("persist auction failed", zap.String("asset", ref.Key()), zap.Error(err))
		}
	}
}

// assetBusy is the single authoritative busy check: it consults both books.
// Callers hold the per-asset lock, so the check and the subsequent custody
// take form one uninterruptible unit.
func (m *Marketplace) assetBusy(ref AssetRef) bool {
	return m.listings.HasActive(ref) || m.auctions.HasActive(ref)
}

// CreateListing places an asset into custody at a fixed price.
func (m *Marketplace) CreateListing(seller AccountID, ref AssetRef, price currency.Amount) Result {
	if price.IsZero() {
		return InvalidPrice
	}
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	if m.assetBusy(ref) {
		return AssetBusy
	}
	if res := m.custody.TakeCustody(ref, seller); !res.IsSuccess() {
		return res
	}
	m.listings.Create(ref, seller, price)
	m.persistListing(ref)
	m.emit(ListingCreatedEvent{Seller: seller, Asset: ref, Price: price})
	return Success
}

// UpdateListingPrice changes the price of the caller's active listing.
func (m *Marketplace) UpdateListingPrice(caller AccountID, ref AssetRef, newPrice currency.Amount) Result {
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	res := m.listings.UpdatePrice(ref, caller, newPrice)
	if !res.IsSuccess() {
		return res
	}
	m.persistListing(ref)
	m.emit(ListingUpdatedEvent{Seller: caller, Asset: ref, NewPrice: newPrice})
	return Success
}

// CancelListing deactivates the caller's listing and returns the asset.
func (m *Marketplace) CancelListing(caller AccountID, ref AssetRef) Result {
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	res := m.listings.Cancel(ref, caller)
	if !res.IsSuccess() {
		return res
	}
	if res := m.custody.ReleaseCustody(ref, caller); !res.IsSuccess() {
		// Custody must hold any actively listed asset; restore the listing
		// rather than strand the asset.
		m.listings.Reactivate(ref)
		return res
	}
	m.persistListing(ref)
	m.emit(ListingCancelledEvent{Seller: caller, Asset: ref})
	return Success
}

// BuyListing purchases an active listing at its current price. The fee and
// royalty rates in effect right now are applied, regardless of the rates when
// the listing was created.
func (m *Marketplace) BuyListing(buyer AccountID, ref AssetRef) Result {
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	seller, price, res := m.listings.Consume(ref)
	if !res.IsSuccess() {
		return res
	}

	royalty := m.admin.Royalty(ref.Collection)
	split := ComputeSplit(price, m.admin.FeeBps(), royalty.Bps)
	payout := Payout{
		Payer:            buyer,
		Seller:           seller,
		FeeRecipient:     m.admin.FeeRecipient(),
		RoyaltyRecipient: royalty.Recipient,
	}

	if res := m.settler.Settle(price, split, payout, false); !res.IsSuccess() {
		// All-or-nothing: the asset stays in custody under the seller's
		// reclaim right and the listing reverts to active.
		m.listings.Reactivate(ref)
		return res
	}

	if res := m.custody.ReleaseCustody(ref, buyer); !res.IsSuccess() {
		// The sale must not stand if the buyer cannot receive the asset:
		// compensate the payouts and refund the buyer in full.
		m.log.Error("custody release failed after settlement", zap.String("asset", ref.Key()))
		m.settler.Unwind(price, split, payout, false)
		m.listings.Reactivate(ref)
		return res
	}

	m.persistListing(ref)
	m.emit(PurchasedEvent{Buyer: buyer, Asset: ref, Price: price})
	return Success
}

// CreateAuction places an asset into custody under a time-bound ascending
// auction with a reserve price.
func (m *Marketplace) CreateAuction(seller AccountID, ref AssetRef, reserve currency.Amount, start, end time.Time) Result {
	if reserve.IsZero() {
		return InvalidPrice
	}
	if res := ValidateWindow(start, end, m.now()); !res.IsSuccess() {
		return res
	}
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	if m.assetBusy(ref) {
		return AssetBusy
	}
	if res := m.custody.TakeCustody(ref, seller); !res.IsSuccess() {
		return res
	}
	m.auctions.Create(ref, seller, reserve, start, end)
	m.persistAuction(ref)
	m.emit(AuctionCreatedEvent{
		Seller:       seller,
		Asset:        ref,
		ReservePrice: reserve,
		StartTime:    start,
		EndTime:      end,
	})
	return Success
}

// PlaceBid escrows a new highest bid. The previous highest bidder is refunded
// in full before the new bid is taken; if either movement fails, the whole
// bid aborts and the auction state is unchanged.
func (m *Marketplace) PlaceBid(bidder AccountID, ref AssetRef, amount currency.Amount) Result {
	if amount.IsZero() {
		return InvalidPrice
	}
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	prevBidder, prevBid, res := m.auctions.CheckBid(ref, amount, m.now())
	if !res.IsSuccess() {
		return res
	}

	// Refund-then-take: the engine never holds two bidders' funds at once.
	if !prevBidder.IsZero() {
		if err := m.funds.Transfer(EscrowAccount, prevBidder, prevBid); err != nil {
			return TransferRejected
		}
	}

	if err := m.funds.Transfer(bidder, EscrowAccount, amount); err != nil {
		if !prevBidder.IsZero() {
			// Restore the prior escrow so the book and held funds agree.
			_ = m.funds.Compensate(prevBidder, EscrowAccount, prevBid)
		}
		return TransferRejected
	}

	if res := m.auctions.RecordBid(ref, bidder, amount); !res.IsSuccess() {
		return res
	}
	m.persistAuction(ref)
	m.emit(BidPlacedEvent{Bidder: bidder, Asset: ref, Amount: amount})
	return Success
}

// SettleAuction closes an ended auction. Any caller may settle once the
// window has passed: liveness must not depend on the seller or winner. A
// second settle fails with AuctionNotActive and mutates nothing.
func (m *Marketplace) SettleAuction(caller AccountID, ref AssetRef) Result {
	exit, ok := m.enter(&ref)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	a, res := m.auctions.CheckSettle(ref, m.now())
	if !res.IsSuccess() {
		return res
	}

	if a.HighestBidder.IsZero() {
		// No bids: the reserve was necessarily unmet, return the asset.
		if res := m.custody.ReleaseCustody(ref, a.Seller); !res.IsSuccess() {
			return res
		}
		m.auctions.MarkSettled(ref, false)
		m.persistAuction(ref)
		m.emit(AuctionSettledEvent{Asset: ref, Amount: 0})
		return Success
	}

	// Any accepted bid already met the reserve, so a highest bidder always
	// means a sale. The winning amount is already in escrow.
	royalty := m.admin.Royalty(ref.Collection)
	split := ComputeSplit(a.HighestBid, m.admin.FeeBps(), royalty.Bps)
	payout := Payout{
		Payer:            a.HighestBidder,
		Seller:           a.Seller,
		FeeRecipient:     m.admin.FeeRecipient(),
		RoyaltyRecipient: royalty.Recipient,
	}

	if res := m.settler.Settle(a.HighestBid, split, payout, true); !res.IsSuccess() {
		// The auction stays unsettled and the bid stays in escrow; settle
		// can be retried once the rejecting recipient is fixed.
		return res
	}

	if res := m.custody.ReleaseCustody(ref, a.HighestBidder); !res.IsSuccess() {
		// Return the payouts to escrow; the bid stays held and the auction
		// stays settleable, so the close can be retried.
		m.log.Error("custody release failed after auction settlement", zap.String("asset", ref.Key()))
		m.settler.Unwind(a.HighestBid, split, payout, true)
		return res
	}

	m.auctions.MarkSettled(ref, true)
	m.persistAuction(ref)
	m.emit(AuctionSettledEvent{Winner: a.HighestBidder, Asset: ref, Amount: a.HighestBid})
	return Success
}

// --- Administrative surface (owner-only) ---

// SetProtocolFee updates the protocol fee rate in basis points.
func (m *Marketplace) SetProtocolFee(caller AccountID, bps uint32) Result {
	exit, ok := m.enter(nil)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	old, res := m.admin.SetFeeBps(caller, bps)
	if !res.IsSuccess() {
		return res
	}
	m.emit(ProtocolFeeUpdatedEvent{OldBps: old, NewBps: bps})
	return Success
}

// SetFeeRecipient updates the protocol fee vault account.
func (m *Marketplace) SetFeeRecipient(caller, recipient AccountID) Result {
	exit, ok := m.enter(nil)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	old, res := m.admin.SetFeeRecipient(caller, recipient)
	if !res.IsSuccess() {
		return res
	}
	m.emit(FeeRecipientUpdatedEvent{Old: old, New: recipient})
	return Success
}

// SetRoyalty configures the creator royalty for a collection.
func (m *Marketplace) SetRoyalty(caller AccountID, collection string, rc RoyaltyConfig) Result {
	exit, ok := m.enter(nil)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	if res := m.admin.SetRoyalty(caller, collection, rc); !res.IsSuccess() {
		return res
	}
	m.emit(RoyaltyUpdatedEvent{Collection: collection, Recipient: rc.Recipient, Bps: rc.Bps})
	return Success
}

// SetCollectionAllowed maintains the advisory collection allow-list.
func (m *Marketplace) SetCollectionAllowed(caller AccountID, collection string, allowed bool) Result {
	exit, ok := m.enter(nil)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	if res := m.admin.SetCollectionAllowed(caller, collection, allowed); !res.IsSuccess() {
		return res
	}
	m.emit(CollectionAllowedUpdatedEvent{Collection: collection, Allowed: allowed})
	return Success
}

// TransferOwnership hands the admin configuration to a new owner.
func (m *Marketplace) TransferOwnership(caller, newOwner AccountID) Result {
	exit, ok := m.enter(nil)
	if !ok {
		return ReentrancyDetected
	}
	defer exit()

	old, res := m.admin.TransferOwnership(caller, newOwner)
	if !res.IsSuccess() {
		return res
	}
	m.emit(OwnershipTransferredEvent{Old: old, New: newOwner})
	return Success
}

// --- Query surface (read-only, no side effects) ---

// GetListing returns the listing for an asset, if any.
func (m *Marketplace) GetListing(ref AssetRef) (Listing, bool) {
	return m.listings.Get(ref)
}

// GetAuction returns the auction for an asset, if any.
func (m *Marketplace) GetAuction(ref AssetRef) (Auction, bool) {
	return m.auctions.Get(ref)
}

// FeeInfo returns the current protocol fee rate and recipient.
func (m *Marketplace) FeeInfo() (bps uint32, recipient AccountID) {
	return m.admin.FeeBps(), m.admin.FeeRecipient()
}

// RoyaltyInfo returns the royalty configuration for a collection.
func (m *Marketplace) RoyaltyInfo(collection string) RoyaltyConfig {
	return m.admin.Royalty(collection)
}

// CollectionAllowed reports the advisory allow-list entry.
func (m *Marketplace) CollectionAllowed(collection string) bool {
	return m.admin.CollectionAllowed(collection)
}

// Owner returns the current configuration owner.
func (m *Marketplace) Owner() AccountID {
	return m.admin.Owner()
}

// EscrowBalance returns the funds currently held by the engine.
func (m *Marketplace) EscrowBalance() currency.Amount {
	return m.funds.Balance(EscrowAccount)
}

// Restore reloads book state from persisted snapshots, for startup.
func (m *Marketplace) Restore(listings []Listing, auctions []Auction) {
	m.listings.Restore(listings)
	m.auctions.Restore(auctions)
}
