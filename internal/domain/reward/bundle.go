// Package reward defines reward payloads and the per-attempt reward policy.
package reward

import (
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// ItemKind tags the variant of an ItemRef.
type ItemKind string

const (
	ItemAvatar     ItemKind = "avatar"
	ItemPet        ItemKind = "pet"
	ItemConsumable ItemKind = "consumable"
)

// IsValid reports whether k is a known item kind.
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemAvatar, ItemPet, ItemConsumable:
		return true
	default:
		return false
	}
}

// ItemRef points at a catalog item granted as part of a reward.
// Avatars and pets are unique unlocks; consumables stack by Quantity.
type ItemRef struct {
	Kind     ItemKind `json:"kind"`
	ID       string   `json:"id"`
	Quantity int      `json:"quantity"`
}

func Avatar(id string) ItemRef { return ItemRef{Kind: ItemAvatar, ID: id, Quantity: 1} }
func Pet(id string) ItemRef    { return ItemRef{Kind: ItemPet, ID: id, Quantity: 1} }

func Consumable(id string, quantity int) ItemRef {
	return ItemRef{Kind: ItemConsumable, ID: id, Quantity: quantity}
}

// Validate checks the variant invariants.
func (i ItemRef) Validate() error {
	if !i.Kind.IsValid() {
		return shared.ValidationError("reward", "ValidateItem", fmt.Sprintf("unknown item kind %q", i.Kind))
	}
	if i.ID == "" {
		return shared.ValidationError("reward", "ValidateItem", "item id is required")
	}
	switch i.Kind {
	case ItemAvatar, ItemPet:
		if i.Quantity != 1 {
			return shared.ValidationError("reward", "ValidateItem", fmt.Sprintf("%s items are unique, quantity must be 1", i.Kind))
		}
	case ItemConsumable:
		if i.Quantity < 1 {
			return shared.ValidationError("reward", "ValidateItem", "consumable quantity must be positive")
		}
	}
	return nil
}

// Bundle is everything a single grant hands out.
type Bundle struct {
	Coins int64     `json:"coins"`
	XP    int64     `json:"xp"`
	Gems  int64     `json:"gems"`
	Items []ItemRef `json:"items,omitempty"`
}

// IsZero reports whether the bundle grants nothing.
func (b Bundle) IsZero() bool {
	return b.Coins == 0 && b.XP == 0 && b.Gems == 0 && len(b.Items) == 0
}

// Add returns the sum of two bundles. Items are concatenated.
func (b Bundle) Add(other Bundle) Bundle {
	out := Bundle{
		Coins: b.Coins + other.Coins,
		XP:    b.XP + other.XP,
		Gems:  b.Gems + other.Gems,
	}
	if len(b.Items)+len(other.Items) > 0 {
		out.Items = make([]ItemRef, 0, len(b.Items)+len(other.Items))
		out.Items = append(out.Items, b.Items...)
		out.Items = append(out.Items, other.Items...)
	}
	return out
}

// Validate rejects negative currency and malformed items.
func (b Bundle) Validate() error {
	if b.Coins < 0 || b.XP < 0 || b.Gems < 0 {
		return shared.NewDomainError("reward", "Validate", shared.ErrNegativeValue, "reward amounts cannot be negative")
	}
	for _, item := range b.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}
