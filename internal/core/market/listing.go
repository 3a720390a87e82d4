package market

import (
	"sync"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// Listing is a fixed-price sale offer for one asset. While Active the engine
// holds the asset in custody and the seller's reclaim right is this record.
type Listing struct {
	Seller AccountID       `json:"seller"`
	Asset  AssetRef        `json:"asset"`
	Price  currency.Amount `json:"price"`
	Active bool            `json:"active"`
}

// ListingBook tracks fixed-price listings keyed by asset reference. At most
// one active listing exists per asset; the facade enforces the cross-book
// check before Create is reached.
type ListingBook struct {
	mu       sync.RWMutex
	listings map[string]*Listing
}

func NewListingBook() *ListingBook {
	return &ListingBook{listings: make(map[string]*Listing)}
}

// Get returns a copy of the listing for an asset, active or not.
func (b *ListingBook) Get(ref AssetRef) (Listing, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.listings[ref.Key()]
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// HasActive reports whether an active listing exists for the asset.
func (b *ListingBook) HasActive(ref AssetRef) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.listings[ref.Key()]
	return ok && l.Active
}

// Create records a new active listing. The facade has already taken custody
// and verified the asset is not busy.
func (b *ListingBook) Create(ref AssetRef, seller AccountID, price currency.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings[ref.Key()] = &Listing{
		Seller: seller,
		Asset:  ref,
		Price:  price,
		Active: true,
	}
}

// UpdatePrice changes the price of an active listing.
func (b *ListingBook) UpdatePrice(ref AssetRef, caller AccountID, newPrice currency.Amount) Result {
	if newPrice.IsZero() {
		return InvalidPrice
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.listings[ref.Key()]
	if !ok || !l.Active {
		return ListingInactive
	}
	if l.Seller != caller {
		return NotSeller
	}
	l.Price = newPrice
	return Success
}

// Cancel deactivates a listing on behalf of its seller. The facade releases
// custody back to the seller after a successful cancel.
func (b *ListingBook) Cancel(ref AssetRef, caller AccountID) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.listings[ref.Key()]
	if !ok || !l.Active {
		return ListingInactive
	}
	if l.Seller != caller {
		return NotSeller
	}
	l.Active = false
	return Success
}

// Consume deactivates a listing exactly once and returns its terms for
// settlement. A consumed listing cannot be consumed again.
func (b *ListingBook) Consume(ref AssetRef) (seller AccountID, price currency.Amount, res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.listings[ref.Key()]
	if !ok || !l.Active {
		return "", 0, ListingInactive
	}
	l.Active = false
	return l.Seller, l.Price, Success
}

// Reactivate undoes a Consume when settlement fails. Facade-internal: the
// asset never left custody, so restoring the active flag restores the exact
// pre-call state.
func (b *ListingBook) Reactivate(ref AssetRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.listings[ref.Key()]; ok {
		l.Active = true
	}
}

// Snapshot returns copies of all listings, for persistence.
func (b *ListingBook) Snapshot() []Listing {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listing, 0, len(b.listings))
	for _, l := range b.listings {
		out = append(out, *l)
	}
	return out
}

// Restore loads listings from a persisted snapshot, replacing book contents.
func (b *ListingBook) Restore(listings []Listing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings = make(map[string]*Listing, len(listings))
	for i := range listings {
		l := listings[i]
		b.listings[l.Asset.Key()] = &l
	}
}
