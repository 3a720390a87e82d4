package marketstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

func newTestStore(t *testing.T, compress bool) *Store {
	t.Helper()
	store, err := NewStore(NewMemoryDB(), StoreOptions{Compress: compress})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestListingRoundTrip(t *testing.T) {
	store := newTestStore(t, false)

	in := market.Listing{
		Seller: "alice",
		Asset:  market.AssetRef{Collection: "punks", TokenID: "42"},
		Price:  currency.Amount(100_000_000),
		Active: true,
	}
	require.NoError(t, store.PutListing(in))

	listings, err := store.LoadListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, in, listings[0])
}

func TestAuctionRoundTrip(t *testing.T) {
	store := newTestStore(t, false)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := market.Auction{
		Seller:        "alice",
		Asset:         market.AssetRef{Collection: "punks", TokenID: "7"},
		ReservePrice:  currency.Amount(50_000_000),
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		HighestBidder: "bob",
		HighestBid:    currency.Amount(75_000_000),
		State:         market.AuctionActive,
	}
	require.NoError(t, store.PutAuction(in))

	auctions, err := store.LoadAuctions(context.Background())
	require.NoError(t, err)
	require.Len(t, auctions, 1)

	out := auctions[0]
	assert.Equal(t, in.Seller, out.Seller)
	assert.Equal(t, in.Asset, out.Asset)
	assert.Equal(t, in.ReservePrice, out.ReservePrice)
	assert.True(t, in.StartTime.Equal(out.StartTime))
	assert.True(t, in.EndTime.Equal(out.EndTime))
	assert.Equal(t, in.HighestBidder, out.HighestBidder)
	assert.Equal(t, in.HighestBid, out.HighestBid)
	assert.Equal(t, in.State, out.State)
}

func TestPutOverwritesByAsset(t *testing.T) {
	store := newTestStore(t, false)
	ref := market.AssetRef{Collection: "punks", TokenID: "1"}

	require.NoError(t, store.PutListing(market.Listing{
		Seller: "alice", Asset: ref, Price: currency.Amount(1_000_000), Active: true,
	}))
	require.NoError(t, store.PutListing(market.Listing{
		Seller: "alice", Asset: ref, Price: currency.Amount(2_000_000), Active: false,
	}))

	listings, err := store.LoadListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, currency.Amount(2_000_000), listings[0].Price)
	assert.False(t, listings[0].Active)
}

func TestPrefixesDoNotBleed(t *testing.T) {
	store := newTestStore(t, false)

	require.NoError(t, store.PutListing(market.Listing{
		Seller: "alice",
		Asset:  market.AssetRef{Collection: "punks", TokenID: "1"},
		Price:  currency.Amount(1_000_000),
		Active: true,
	}))
	require.NoError(t, store.PutAuction(market.Auction{
		Seller:       "bob",
		Asset:        market.AssetRef{Collection: "punks", TokenID: "2"},
		ReservePrice: currency.Amount(1_000_000),
		StartTime:    time.Now().UTC(),
		EndTime:      time.Now().UTC().Add(time.Hour),
	}))

	listings, err := store.LoadListings(context.Background())
	require.NoError(t, err)
	auctions, err := store.LoadAuctions(context.Background())
	require.NoError(t, err)

	assert.Len(t, listings, 1)
	assert.Len(t, auctions, 1)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t, false)
	ref := market.AssetRef{Collection: "punks", TokenID: "9"}

	require.NoError(t, store.PutListing(market.Listing{
		Seller: "alice", Asset: ref, Price: currency.Amount(1), Active: true,
	}))
	require.NoError(t, store.DeleteListing(context.Background(), ref))

	listings, err := store.LoadListings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestCompressedRecordRoundTrip(t *testing.T) {
	store := newTestStore(t, true)

	// A long repetitive token id compresses well and pushes the payload over
	// the threshold.
	ref := market.AssetRef{
		Collection: "punks",
		TokenID:    string(bytes.Repeat([]byte("a"), 512)),
	}
	in := market.Listing{Seller: "alice", Asset: ref, Price: currency.Amount(5_000_000), Active: true}
	require.NoError(t, store.PutListing(in))

	raw, err := store.db.Read(context.Background(), listingKey(ref))
	require.NoError(t, err)
	assert.Equal(t, flagLZ4, raw[0])
	assert.Less(t, len(raw), 512)

	listings, err := store.LoadListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, in, listings[0])
}

func TestSmallRecordStaysRaw(t *testing.T) {
	store := newTestStore(t, true)
	ref := market.AssetRef{Collection: "p", TokenID: "1"}

	require.NoError(t, store.PutListing(market.Listing{
		Seller: "a", Asset: ref, Price: currency.Amount(1), Active: true,
	}))

	raw, err := store.db.Read(context.Background(), listingKey(ref))
	require.NoError(t, err)
	assert.Equal(t, flagRaw, raw[0])
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("listing0"), prefixUpperBound([]byte("listing/")))
	assert.Equal(t, []byte{0x01}, prefixUpperBound([]byte{0x00, 0xff}))
	assert.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
}

func TestMemoryDBBatchAndIterator(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	err := db.Batch(ctx, []BatchOperation{
		{Type: BatchPut, Key: []byte("a"), Value: []byte("1")},
		{Type: BatchPut, Key: []byte("b"), Value: []byte("2")},
		{Type: BatchPut, Key: []byte("c"), Value: []byte("3")},
		{Type: BatchDelete, Key: []byte("b")},
	})
	require.NoError(t, err)

	iter, err := db.Iterator(ctx, []byte("a"), []byte("z"))
	require.NoError(t, err)
	defer iter.Close()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestClosedBackendRejectsOperations(t *testing.T) {
	db := NewMemoryDB()
	require.NoError(t, db.Close())

	_, err := db.Read(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Write(context.Background(), []byte("k"), []byte("v")), ErrClosed)
}
