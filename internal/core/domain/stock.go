package domain

import "strings"

// DefaultLocations are the two places the shop keeps stock.
var DefaultLocations = []string{"Basement", "Shop"}

type StockKey struct {
	Item     string
	Location string
}

// StockEntry is the balance of one item at one location.
type StockEntry struct {
	Item         string `json:"item"`
	Location     string `json:"location"`
	Category     string `json:"category,omitempty"`
	InitialStock int    `json:"initial_stock"`
	CurrentStock int    `json:"current_stock"`
}

func (e StockEntry) Key() StockKey {
	return StockKey{Item: e.Item, Location: e.Location}
}

// Matches reports whether the search text occurs in the item name or category, ignoring case.
func (e StockEntry) Matches(search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(e.Item), needle) ||
		strings.Contains(strings.ToLower(e.Category), needle)
}

// DefaultInventory is the starter table a fresh install is seeded with.
func DefaultInventory() []StockEntry {
	return []StockEntry{
		{Item: "Water Tank", Location: "Basement", InitialStock: 20, CurrentStock: 20},
		{Item: "Plastic Bucket", Location: "Basement", InitialStock: 75, CurrentStock: 75},
		{Item: "Storage Box", Location: "Basement", InitialStock: 150, CurrentStock: 150},
		{Item: "Chair Model 220", Location: "Basement", InitialStock: 40, CurrentStock: 40},
	}
}
