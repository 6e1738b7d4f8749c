package orderflow

import (
	"testing"

	"github.com/meja-pos/api/internal/model"
)

func TestClassify(t *testing.T) {
	food := []string{"appetizers", "appetizer", "main_courses", "main_course", "salads", "salad", "sides", "side", "desserts", "dessert", "MAIN_COURSE"}
	for _, c := range food {
		if got := Classify(c); got != CategoryFood {
			t.Errorf("Classify(%q): got %s, want food", c, got)
		}
	}
	drinks := []string{"drinks", "drink", "beverage", "beverages", "Beverages"}
	for _, c := range drinks {
		if got := Classify(c); got != CategoryDrink {
			t.Errorf("Classify(%q): got %s, want drink", c, got)
		}
	}
	for _, c := range []string{"", "pizza", "main course", " salad"} {
		if got := Classify(c); got != CategoryUnknown {
			t.Errorf("Classify(%q): got %s, want unknown", c, got)
		}
	}
}

func TestSplitItems_Example(t *testing.T) {
	items := []model.OrderItem{
		{ID: "a", Category: "salad"},
		{ID: "b", Category: "drink"},
		{ID: "c", Category: "unknown"},
	}
	s := SplitItems(items)

	if len(s.Food) != 1 || s.Food[0].ID != "a" {
		t.Errorf("food: got %+v", s.Food)
	}
	if len(s.Drinks) != 1 || s.Drinks[0].ID != "b" {
		t.Errorf("drinks: got %+v", s.Drinks)
	}
	if len(s.Unknown) != 1 || s.Unknown[0].ID != "c" {
		t.Errorf("unknown: got %+v", s.Unknown)
	}
}

func TestSplitItems_IsOrderedPartition(t *testing.T) {
	items := []model.OrderItem{
		{ID: "1", Category: "drinks"},
		{ID: "2", Category: "main_course"},
		{ID: "3", Category: "beverage"},
		{ID: "4", Category: "sides"},
		{ID: "5", Category: "merch"},
		{ID: "6", Category: "dessert"},
		{ID: "7", Category: "drink"},
	}
	s := SplitItems(items)

	seen := map[string]int{}
	for _, it := range s.Food {
		seen[it.ID]++
	}
	for _, it := range s.Drinks {
		seen[it.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("item %s appears in %d buckets", id, n)
		}
	}

	assertIDs(t, "food", s.Food, "2", "4", "6")
	assertIDs(t, "drinks", s.Drinks, "1", "3", "7")
	assertIDs(t, "unknown", s.Unknown, "5")
}

func TestSplitItems_Empty(t *testing.T) {
	s := SplitItems(nil)
	if len(s.Food) != 0 || len(s.Drinks) != 0 || len(s.Unknown) != 0 {
		t.Errorf("expected empty split, got %+v", s)
	}
}

func assertIDs(t *testing.T, name string, items []model.OrderItem, want ...string) {
	t.Helper()
	if len(items) != len(want) {
		t.Fatalf("%s: got %d items, want %d", name, len(items), len(want))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("%s[%d]: got %s, want %s", name, i, items[i].ID, id)
		}
	}
}
