package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category name does not match any list.
var ErrUnknownCategory = errors.New("unknown category")

// Category identifies one of the three per-user item lists.
type Category string

const (
	CategoryOwned    Category = "owned"    // main garage
	CategoryWanted   Category = "wanted"   // "in search of" list
	CategoryPreorder Category = "preorder" // incoming pre-orders
)

// Categories lists every category in display order.
var Categories = []Category{CategoryOwned, CategoryWanted, CategoryPreorder}

// ParseCategory accepts the canonical names plus the aliases the web client
// historically used ("collection", "iso").
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "owned", "collection", "garage":
		return CategoryOwned, nil
	case "wanted", "iso":
		return CategoryWanted, nil
	case "preorder", "pre-order", "preorders":
		return CategoryPreorder, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnknownCategory, name)
}

// CollectionName returns the Firestore collection id holding this category.
func (c Category) CollectionName() string {
	switch c {
	case CategoryOwned:
		return "diecast_collection"
	case CategoryWanted:
		return "iso_collection"
	case CategoryPreorder:
		return "preorder_collection"
	}
	return ""
}

// Path returns the collection path scoped to one user, e.g. users/<uid>/iso_collection.
func (c Category) Path(uid string) string {
	return "users/" + uid + "/" + c.CollectionName()
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c.CollectionName() != ""
}

func (c Category) String() string { return string(c) }
