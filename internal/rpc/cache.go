package rpc

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmrkt/marketd/internal/core/market"
)

// QueryCache holds read query responses and drops the affected entries when a
// committed event touches the underlying state. It implements
// market.Publisher so the fanout can feed it directly.
type QueryCache struct {
	entries *lru.Cache[string, interface{}]
}

// NewQueryCache returns a cache with the given capacity, or nil when size is
// zero, which disables caching.
func NewQueryCache(size int) (*QueryCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, interface{}](size)
	if err != nil {
		return nil, err
	}
	return &QueryCache{entries: entries}, nil
}

func (c *QueryCache) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

func (c *QueryCache) Put(key string, value interface{}) {
	if c == nil {
		return
	}
	c.entries.Add(key, value)
}

// Publish invalidates cached queries the event made stale.
func (c *QueryCache) Publish(ev market.Event) {
	if c == nil {
		return
	}
	switch e := ev.(type) {
	case market.ListingCreatedEvent:
		c.dropAsset(e.Asset)
	case market.ListingUpdatedEvent:
		c.dropAsset(e.Asset)
	case market.ListingCancelledEvent:
		c.dropAsset(e.Asset)
	case market.PurchasedEvent:
		c.dropAsset(e.Asset)
	case market.AuctionCreatedEvent:
		c.dropAsset(e.Asset)
	case market.BidPlacedEvent:
		c.dropAsset(e.Asset)
	case market.AuctionSettledEvent:
		c.dropAsset(e.Asset)
	case market.ProtocolFeeUpdatedEvent:
		c.entries.Remove("fee_info")
	case market.FeeRecipientUpdatedEvent:
		c.entries.Remove("fee_info")
	case market.OwnershipTransferredEvent:
		// fee_info carries the owner.
		c.entries.Remove("fee_info")
	case market.RoyaltyUpdatedEvent, market.CollectionAllowedUpdatedEvent:
		// royalty_info and collection_allowed responses are not cached.
	default:
		// Unknown events may touch anything.
		c.entries.Purge()
	}
}

func (c *QueryCache) dropAsset(ref market.AssetRef) {
	c.entries.Remove("listing/" + ref.Key())
	c.entries.Remove("auction/" + ref.Key())
}
