package market

import "fmt"

// AccountID identifies a participant: sellers, bidders, the fee recipient and
// the engine's own escrow account. The engine treats it as an opaque address.
type AccountID string

// IsZero reports whether the account is unset.
func (a AccountID) IsZero() bool {
	return a == ""
}

// EscrowAccount is the engine's internal account. It holds bid escrow and
// in-flight settlement funds and legally owns every asset in custody.
const EscrowAccount AccountID = "market:escrow"

// AssetRef is the stable key for one non-fungible item: a collection
// identifier plus the item's identifier within that collection.
type AssetRef struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

// Key returns the canonical map key for the asset.
func (r AssetRef) Key() string {
	return r.Collection + "/" + r.TokenID
}

func (r AssetRef) String() string {
	return r.Key()
}

// Valid reports whether both components are present.
func (r AssetRef) Valid() bool {
	return r.Collection != "" && r.TokenID != ""
}

// ParseAssetRef splits a "collection/token" key back into an AssetRef.
func ParseAssetRef(key string) (AssetRef, error) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			ref := AssetRef{Collection: key[:i], TokenID: key[i+1:]}
			if !ref.Valid() {
				break
			}
			return ref, nil
		}
	}
	return AssetRef{}, fmt.Errorf("market: malformed asset key %q", key)
}
