package market

import (
	"sync"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// RoyaltyConfig is the per-collection creator royalty.
type RoyaltyConfig struct {
	Recipient AccountID `json:"recipient"`
	Bps       uint32    `json:"bps"`
}

// AdminConfig is the owner-mutable marketplace configuration. It is read at
// settlement time, never cached per listing, so changing the fee rate affects
// every future settlement including sales created under an earlier rate.
type AdminConfig struct {
	mu sync.RWMutex

	owner        AccountID
	feeBps       uint32
	feeRecipient AccountID
	royalties    map[string]RoyaltyConfig

	// allowedCollections is advisory: it is maintained by the owner but not
	// enforced on the listing or purchase path. Enforcing it would change
	// observable behavior, so callers decide whether to honor it.
	allowedCollections map[string]bool
}

func NewAdminConfig(owner AccountID, feeBps uint32, feeRecipient AccountID) *AdminConfig {
	return &AdminConfig{
		owner:              owner,
		feeBps:             feeBps,
		feeRecipient:       feeRecipient,
		royalties:          make(map[string]RoyaltyConfig),
		allowedCollections: make(map[string]bool),
	}
}

// Owner returns the current configuration owner.
func (c *AdminConfig) Owner() AccountID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// TransferOwnership hands configuration control to a new owner. Returns the
// previous owner for the OwnershipTransferred event.
func (c *AdminConfig) TransferOwnership(caller, newOwner AccountID) (old AccountID, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return "", NotAuthorized
	}
	if newOwner.IsZero() {
		return "", NotAuthorized
	}
	old = c.owner
	c.owner = newOwner
	return old, Success
}

// FeeBps returns the protocol fee rate in basis points.
func (c *AdminConfig) FeeBps() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeBps
}

// SetFeeBps updates the protocol fee rate. The fee combined with any
// configured royalty may not exceed 100%, so a settlement split can never
// overdraw the gross. Returns the previous rate for the ProtocolFeeUpdated
// event.
func (c *AdminConfig) SetFeeBps(caller AccountID, bps uint32) (old uint32, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return 0, NotAuthorized
	}
	if !currency.ValidBps(bps) {
		return 0, InvalidPrice
	}
	if bps+c.maxRoyaltyBpsLocked() > currency.MaxBps {
		return 0, InvalidPrice
	}
	old = c.feeBps
	c.feeBps = bps
	return old, Success
}

func (c *AdminConfig) maxRoyaltyBpsLocked() uint32 {
	var max uint32
	for _, rc := range c.royalties {
		if rc.Bps > max {
			max = rc.Bps
		}
	}
	return max
}

// FeeRecipient returns the protocol fee vault account.
func (c *AdminConfig) FeeRecipient() AccountID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeRecipient
}

// SetFeeRecipient updates the fee vault. Returns the previous recipient for
// the FeeRecipientUpdated event.
func (c *AdminConfig) SetFeeRecipient(caller, recipient AccountID) (old AccountID, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return "", NotAuthorized
	}
	if recipient.IsZero() {
		return "", NotAuthorized
	}
	old = c.feeRecipient
	c.feeRecipient = recipient
	return old, Success
}

// Royalty returns the royalty configuration for a collection, zero-valued if
// none is set.
func (c *AdminConfig) Royalty(collection string) RoyaltyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.royalties[collection]
}

// SetRoyalty configures a collection's creator royalty. The royalty combined
// with the protocol fee may not exceed 100%.
func (c *AdminConfig) SetRoyalty(caller AccountID, collection string, rc RoyaltyConfig) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return NotAuthorized
	}
	if !currency.ValidBps(rc.Bps) {
		return InvalidPrice
	}
	if rc.Bps+c.feeBps > currency.MaxBps {
		return InvalidPrice
	}
	c.royalties[collection] = rc
	return Success
}

// SetCollectionAllowed marks a collection on the advisory allow-list.
func (c *AdminConfig) SetCollectionAllowed(caller AccountID, collection string, allowed bool) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.owner {
		return NotAuthorized
	}
	if allowed {
		c.allowedCollections[collection] = true
	} else {
		delete(c.allowedCollections, collection)
	}
	return Success
}

// CollectionAllowed reports the advisory allow-list entry for a collection.
func (c *AdminConfig) CollectionAllowed(collection string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowedCollections[collection]
}
