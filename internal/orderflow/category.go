package orderflow

import (
	"strings"

	"github.com/meja-pos/api/internal/model"
)

// Category is the food/drink bucket of an item.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryFood
	CategoryDrink
)

func (c Category) String() string {
	switch c {
	case CategoryFood:
		return "food"
	case CategoryDrink:
		return "drink"
	}
	return "unknown"
}

var categorySynonyms = map[string]Category{
	"appetizers":   CategoryFood,
	"appetizer":    CategoryFood,
	"main_courses": CategoryFood,
	"main_course":  CategoryFood,
	"salads":       CategoryFood,
	"salad":        CategoryFood,
	"sides":        CategoryFood,
	"side":         CategoryFood,
	"desserts":     CategoryFood,
	"dessert":      CategoryFood,
	"drinks":       CategoryDrink,
	"drink":        CategoryDrink,
	"beverage":     CategoryDrink,
	"beverages":    CategoryDrink,
}

// Classify maps a free-text menu category onto a bucket.
func Classify(category string) Category {
	return categorySynonyms[strings.ToLower(category)]
}

// Split is the result of partitioning an order's items. Unknown holds the
// items that belong to neither bucket; they are never shown to any role.
type Split struct {
	Food    []model.OrderItem
	Drinks  []model.OrderItem
	Unknown []model.OrderItem
}

// SplitItems partitions items by category, keeping relative order per bucket.
func SplitItems(items []model.OrderItem) Split {
	var s Split
	for _, it := range items {
		switch Classify(it.Category) {
		case CategoryFood:
			s.Food = append(s.Food, it)
		case CategoryDrink:
			s.Drinks = append(s.Drinks, it)
		default:
			s.Unknown = append(s.Unknown, it)
		}
	}
	return s
}

// VisibleItems returns the items v may see in their original order, and how
// many were hidden (including uncategorised items).
func VisibleItems(v Visibility, items []model.OrderItem) ([]model.OrderItem, int) {
	visible := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if v.Allows(Classify(it.Category)) {
			visible = append(visible, it)
		}
	}
	return visible, len(items) - len(visible)
}
