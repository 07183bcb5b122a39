// Package grouping clusters equivalent listings across retailers into comparison groups.
package grouping

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"pricetracker-backend/lib/pricestore"
)

// idLength is the number of hex characters of the digest kept as the group id.
const idLength = 8

// DeriveID returns the group id for a name: the first 8 hex characters of the md5 of the
// lowercased, trimmed name. The same name always yields the same id.
func DeriveID(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(name))))
	return hex.EncodeToString(sum[:])[:idLength]
}

// Store is the part of pricestore.Store grouping needs.
type Store interface {
	GetProduct(ctx context.Context, id int64) (pricestore.Product, error)
	SetGroup(ctx context.Context, id int64, groupID string) error
	AssignGroupIfUnset(ctx context.Context, id int64, groupID string) (string, error)
	GroupMembers(ctx context.Context, groupID string) ([]pricestore.Product, error)
	ListGroups(ctx context.Context) ([]pricestore.Group, error)
}

type Grouper struct {
	store Store
}

func NewGrouper(store Store) Grouper {
	return Grouper{store: store}
}

// GroupOf returns the product's group, deriving one from its name and persisting it if
// the product has none yet.
func (g Grouper) GroupOf(ctx context.Context, productID int64) (string, error) {
	product, err := g.store.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if product.GroupID != "" {
		return product.GroupID, nil
	}
	// a concurrent GroupOf may have won, the stored group is what counts
	return g.store.AssignGroupIfUnset(ctx, productID, DeriveID(product.Name))
}

// SetGroup moves a product into a group, overriding whatever group it had.
func (g Grouper) SetGroup(ctx context.Context, productID int64, groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return fmt.Errorf("set group: group id is empty")
	}
	return g.store.SetGroup(ctx, productID, groupID)
}

// Ungroup removes a product from its group.
func (g Grouper) Ungroup(ctx context.Context, productID int64) error {
	return g.store.SetGroup(ctx, productID, "")
}

// NameGroup puts every product into the group identified by groupName, the id is derived
// from the group name rather than from any product name.
func (g Grouper) NameGroup(ctx context.Context, groupName string, productIDs ...int64) (string, error) {
	if strings.TrimSpace(groupName) == "" {
		return "", fmt.Errorf("name group: group name is empty")
	}
	groupID := DeriveID(groupName)
	for _, id := range productIDs {
		err := g.store.SetGroup(ctx, id, groupID)
		if err != nil {
			return "", fmt.Errorf("name group: product %d: %w", id, err)
		}
	}
	return groupID, nil
}

// MembersOf returns the active members of a group, cheapest first and unpriced last.
func (g Grouper) MembersOf(ctx context.Context, groupID string) ([]pricestore.Product, error) {
	return g.store.GroupMembers(ctx, groupID)
}

func (g Grouper) AllGroups(ctx context.Context) ([]pricestore.Group, error) {
	return g.store.ListGroups(ctx)
}

// BestPrice returns the cheapest member that has a price, ok is false if none do.
func BestPrice(members []pricestore.Product) (best pricestore.Product, ok bool) {
	for _, m := range members {
		if m.CurrentPrice == nil {
			continue
		}
		if !ok || *m.CurrentPrice < *best.CurrentPrice {
			best = m
			ok = true
		}
	}
	return best, ok
}

// Savings is how much cheaper the best member is than the most expensive priced one.
func Savings(members []pricestore.Product) float64 {
	var (
		lowest, highest float64
		seen            bool
	)
	for _, m := range members {
		if m.CurrentPrice == nil {
			continue
		}
		price := *m.CurrentPrice
		if !seen || price < lowest {
			lowest = price
		}
		if !seen || price > highest {
			highest = price
		}
		seen = true
	}
	return highest - lowest
}
