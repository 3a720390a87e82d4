package saledb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

// BookReader is the subset of engine queries the journal needs to enrich sale
// rows. Sale events carry the buyer and price; the seller and the applied
// rates come from the books and admin config, read at publish time, which is
// inside the same call that settled the sale.
type BookReader interface {
	GetListing(ref market.AssetRef) (market.Listing, bool)
	GetAuction(ref market.AssetRef) (market.Auction, bool)
	FeeInfo() (bps uint32, recipient market.AccountID)
	RoyaltyInfo(collection string) market.RoyaltyConfig
}

// Journal is a market.Publisher that persists every event and derives sale
// rows from purchase and settlement events. Write failures are logged and
// dropped; the journal is history, not the source of truth.
type Journal struct {
	store *Store
	books BookReader
	now   func() time.Time
	log   *zap.Logger
}

func NewJournal(store *Store, books BookReader, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		store: store,
		books: books,
		now:   time.Now,
		log:   logger,
	}
}

func (j *Journal) Publish(ev market.Event) {
	ctx := context.Background()
	at := j.now()

	if err := j.store.RecordEvent(ctx, ev.EventType(), ev, at); err != nil {
		j.log.Error("journal event write failed",
			zap.String("type", ev.EventType()), zap.Error(err))
	}

	switch e := ev.(type) {
	case market.PurchasedEvent:
		j.recordSale(ctx, SaleFixedPrice, e.Asset, e.Buyer, e.Price, at)
	case market.AuctionSettledEvent:
		if e.Winner != "" {
			j.recordSale(ctx, SaleAuction, e.Asset, e.Winner, e.Amount, at)
		}
	}
}

func (j *Journal) recordSale(ctx context.Context, kind SaleKind, ref market.AssetRef,
	buyer market.AccountID, gross currency.Amount, at time.Time) {

	var seller market.AccountID
	switch kind {
	case SaleFixedPrice:
		if l, ok := j.books.GetListing(ref); ok {
			seller = l.Seller
		}
	case SaleAuction:
		if a, ok := j.books.GetAuction(ref); ok {
			seller = a.Seller
		}
	}

	feeBps, _ := j.books.FeeInfo()
	royalty := j.books.RoyaltyInfo(ref.Collection)
	split := market.ComputeSplit(gross, feeBps, royalty.Bps)

	rec := SaleRecord{
		Kind:       kind,
		Collection: ref.Collection,
		TokenID:    ref.TokenID,
		Seller:     seller,
		Buyer:      buyer,
		Gross:      gross,
		Fee:        split.ProtocolFee,
		Royalty:    split.Royalty,
		SellerNet:  split.SellerNet,
		OccurredAt: at,
	}
	if err := j.store.RecordSale(ctx, rec); err != nil {
		j.log.Error("journal sale write failed",
			zap.String("asset", ref.Key()), zap.Error(err))
	}
}
