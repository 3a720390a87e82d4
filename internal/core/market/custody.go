package market

import (
	"errors"
	"sync"
)

// AssetRegistry is the authoritative owner mapping for non-fungible assets.
// The engine moves assets only through TransferFrom, which enforces the usual
// owner-or-approved rule.
type AssetRegistry interface {
	// OwnerOf returns the current owner, or false if the asset is unknown.
	OwnerOf(ref AssetRef) (AccountID, bool)

	// TransferFrom moves the asset from its current owner to a new owner on
	// behalf of operator. It fails unless operator is the owner or has been
	// approved for this asset, and from matches the actual owner.
	TransferFrom(operator, from, to AccountID, ref AssetRef) error
}

var (
	errUnknownAsset   = errors.New("market: unknown asset")
	errNotApproved    = errors.New("market: operator not approved for asset")
	errWrongOwner     = errors.New("market: from is not the asset owner")
	errAssetExists    = errors.New("market: asset already minted")
	errNotAssetOwner  = errors.New("market: caller does not own asset")
	errApprovalDenied = errors.New("market: only the owner may approve")
)

// MemoryRegistry is the in-process AssetRegistry: an owner map plus one
// approved operator per asset.
type MemoryRegistry struct {
	mu        sync.RWMutex
	owners    map[string]AccountID
	approvals map[string]AccountID
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		owners:    make(map[string]AccountID),
		approvals: make(map[string]AccountID),
	}
}

// Mint records a new asset owned by owner.
func (r *MemoryRegistry) Mint(ref AssetRef, owner AccountID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[ref.Key()]; ok {
		return errAssetExists
	}
	r.owners[ref.Key()] = owner
	return nil
}

// Approve lets caller grant operator the right to move one asset. Approval is
// cleared on transfer.
func (r *MemoryRegistry) Approve(caller, operator AccountID, ref AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[ref.Key()]
	if !ok {
		return errUnknownAsset
	}
	if owner != caller {
		return errApprovalDenied
	}
	r.approvals[ref.Key()] = operator
	return nil
}

func (r *MemoryRegistry) OwnerOf(ref AssetRef) (AccountID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[ref.Key()]
	return owner, ok
}

func (r *MemoryRegistry) TransferFrom(operator, from, to AccountID, ref AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[ref.Key()]
	if !ok {
		return errUnknownAsset
	}
	if owner != from {
		return errWrongOwner
	}
	if operator != owner && r.approvals[ref.Key()] != operator {
		return errNotApproved
	}

	r.owners[ref.Key()] = to
	delete(r.approvals, ref.Key())
	return nil
}

// CustodyLedger exclusively owns asset movement for the engine. While an asset
// is listed or auctioned the escrow account is its only real owner; the seller
// retains a reclaim right recorded on the Listing or Auction, never a live
// reference to the asset.
type CustodyLedger struct {
	registry AssetRegistry
}

func NewCustodyLedger(registry AssetRegistry) *CustodyLedger {
	return &CustodyLedger{registry: registry}
}

// TakeCustody transfers the asset from its owner into engine custody. Fails
// with TransferRejected if the engine lacks approval, from does not own the
// asset, or the asset does not exist.
func (c *CustodyLedger) TakeCustody(ref AssetRef, from AccountID) Result {
	if err := c.registry.TransferFrom(EscrowAccount, from, EscrowAccount, ref); err != nil {
		return TransferRejected
	}
	return Success
}

// ReleaseCustody transfers the asset out of engine custody. Fails with
// CustodyViolation if the engine does not currently hold it.
func (c *CustodyLedger) ReleaseCustody(ref AssetRef, to AccountID) Result {
	owner, ok := c.registry.OwnerOf(ref)
	if !ok || owner != EscrowAccount {
		return CustodyViolation
	}
	if err := c.registry.TransferFrom(EscrowAccount, EscrowAccount, to, ref); err != nil {
		return CustodyViolation
	}
	return Success
}

// Holds reports whether the engine currently has the asset in custody.
func (c *CustodyLedger) Holds(ref AssetRef) bool {
	owner, ok := c.registry.OwnerOf(ref)
	return ok && owner == EscrowAccount
}
