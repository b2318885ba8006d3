// Package burn validates the list of assets a bundle permanently removes
// from the shielded pool.
package burn

import (
	"fmt"

	"github.com/vocdoni/shielded-pool/asset"
	"github.com/vocdoni/shielded-pool/value"
)

var (
	ErrDuplicateAsset = fmt.Errorf("duplicate asset in burn list")
	ErrNativeAsset    = fmt.Errorf("native asset cannot be burned")
	ErrZeroAmount     = fmt.Errorf("burn amount must be non zero")
)

// Item is one entry of a burn list.
type Item struct {
	Asset  asset.Base
	Amount value.NoteValue
}

// ValidateBundleBurn checks a burn list and returns it as a map keyed by
// asset. It stops at the first invalid entry.
func ValidateBundleBurn(items []Item) (map[asset.Base]value.NoteValue, error) {
	burns := make(map[asset.Base]value.NoteValue, len(items))
	for i, item := range items {
		if err := ValidateItem(item.Asset, item.Amount); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, ok := burns[item.Asset]; ok {
			return nil, fmt.Errorf("entry %d: %w: %s", i, ErrDuplicateAsset, item.Asset)
		}
		burns[item.Asset] = item.Amount
	}
	return burns, nil
}

// ValidateItem checks a single burn entry.
func ValidateItem(a asset.Base, amount value.NoteValue) error {
	if !a.IsValid() {
		return fmt.Errorf("%w: identity", asset.ErrInvalidBase)
	}
	if a.IsNative() {
		return ErrNativeAsset
	}
	if amount == 0 {
		return fmt.Errorf("%w: %s", ErrZeroAmount, a)
	}
	return nil
}
