package saledb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig(":memory:")
	// A shared in-memory sqlite database only exists on one connection.
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1

	store, err := NewStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func saleAt(seller, buyer market.AccountID, col, token string, gross uint64, at time.Time) SaleRecord {
	g := currency.Amount(gross)
	return SaleRecord{
		Kind:       SaleFixedPrice,
		Collection: col,
		TokenID:    token,
		Seller:     seller,
		Buyer:      buyer,
		Gross:      g,
		Fee:        g.SplitBps(250),
		Royalty:    g.SplitBps(500),
		SellerNet:  g - g.SplitBps(250) - g.SplitBps(500),
		OccurredAt: at,
	}
}

func TestRecordAndQuerySales(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordSale(ctx, saleAt("alice", "bob", "punks", "1", 100_000_000, now)))
	require.NoError(t, store.RecordSale(ctx, saleAt("alice", "carol", "punks", "2", 50_000_000, now.Add(time.Minute))))
	require.NoError(t, store.RecordSale(ctx, saleAt("dave", "bob", "birds", "1", 10_000_000, now.Add(2*time.Minute))))

	count, err := store.SaleCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Newest first.
	all, err := store.Sales(ctx, SaleQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "birds", all[0].Collection)

	byCollection, err := store.Sales(ctx, SaleQuery{Collection: "punks"})
	require.NoError(t, err)
	assert.Len(t, byCollection, 2)

	byAsset, err := store.Sales(ctx, SaleQuery{Collection: "punks", TokenID: "2"})
	require.NoError(t, err)
	require.Len(t, byAsset, 1)
	assert.Equal(t, market.AccountID("carol"), byAsset[0].Buyer)
	assert.Equal(t, currency.Amount(50_000_000), byAsset[0].Gross)

	bySeller, err := store.Sales(ctx, SaleQuery{Seller: "dave"})
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)

	limited, err := store.Sales(ctx, SaleQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaleRecordConservation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := saleAt("alice", "bob", "punks", "1", 33_333_333, time.Now())
	require.NoError(t, store.RecordSale(ctx, rec))

	got, err := store.Sales(ctx, SaleQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, got[0].Gross, got[0].Fee+got[0].Royalty+got[0].SellerNet)
}

func TestRecordAndQueryEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ev := market.ListingCreatedEvent{
		Seller: "alice",
		Asset:  market.AssetRef{Collection: "punks", TokenID: "1"},
		Price:  currency.Amount(100_000_000),
	}
	require.NoError(t, store.RecordEvent(ctx, ev.EventType(), ev, now))

	events, err := store.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "listingCreated", events[0].Type)

	var decoded market.ListingCreatedEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig("/tmp/sales.db").Validate())

	bad := DefaultConfig("/tmp/sales.db")
	bad.Driver = "oracle"
	assert.Error(t, bad.Validate())

	empty := DefaultConfig("")
	assert.Error(t, empty.Validate())
}

type stubBooks struct {
	listing market.Listing
	auction market.Auction
}

func (s stubBooks) GetListing(ref market.AssetRef) (market.Listing, bool) { return s.listing, true }
func (s stubBooks) GetAuction(ref market.AssetRef) (market.Auction, bool) { return s.auction, true }
func (s stubBooks) FeeInfo() (uint32, market.AccountID)                   { return 250, "vault" }
func (s stubBooks) RoyaltyInfo(collection string) market.RoyaltyConfig {
	return market.RoyaltyConfig{Recipient: "creator", Bps: 500}
}

func TestJournalDerivesSaleFromPurchase(t *testing.T) {
	store := newTestStore(t)
	ref := market.AssetRef{Collection: "punks", TokenID: "1"}

	books := stubBooks{listing: market.Listing{Seller: "alice", Asset: ref}}
	journal := NewJournal(store, books, nil)

	journal.Publish(market.PurchasedEvent{
		Buyer: "bob",
		Asset: ref,
		Price: currency.Amount(100_000_000),
	})

	ctx := context.Background()
	sales, err := store.Sales(ctx, SaleQuery{})
	require.NoError(t, err)
	require.Len(t, sales, 1)

	assert.Equal(t, SaleFixedPrice, sales[0].Kind)
	assert.Equal(t, market.AccountID("alice"), sales[0].Seller)
	assert.Equal(t, market.AccountID("bob"), sales[0].Buyer)
	assert.Equal(t, currency.Amount(2_500_000), sales[0].Fee)
	assert.Equal(t, currency.Amount(5_000_000), sales[0].Royalty)
	assert.Equal(t, currency.Amount(92_500_000), sales[0].SellerNet)

	events, err := store.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "purchased", events[0].Type)
}

func TestJournalSkipsSaleRowForNoSaleSettlement(t *testing.T) {
	store := newTestStore(t)
	ref := market.AssetRef{Collection: "punks", TokenID: "2"}

	journal := NewJournal(store, stubBooks{}, nil)
	journal.Publish(market.AuctionSettledEvent{Asset: ref})

	ctx := context.Background()
	sales, err := store.Sales(ctx, SaleQuery{})
	require.NoError(t, err)
	assert.Empty(t, sales)

	events, err := store.Events(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
