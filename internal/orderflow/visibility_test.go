package orderflow

import (
	"testing"

	"github.com/meja-pos/api/internal/model"
)

func TestVisibilityFor_AllRoles(t *testing.T) {
	tests := []struct {
		role string
		want Scope
	}{
		{"owner", ScopeBoth},
		{"admin", ScopeBoth},
		{"manager", ScopeBoth},
		{"waiter", ScopeBoth},
		{"chef", ScopeFood},
		{"barman", ScopeDrinks},
		{"CHEF", ScopeFood},
		{"dishwasher", ScopeNone},
		{"", ScopeNone},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := VisibilityFor(ParseRole(tt.role)).Scope()
			if got != tt.want {
				t.Errorf("scope: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseRole_Unknown(t *testing.T) {
	if r := ParseRole("cashier"); r.Known() {
		t.Errorf("expected unknown role, got %q", r)
	}
	if r := ParseRole("Barman"); !r.Known() || r != "barman" {
		t.Errorf("expected barman, got %q", r)
	}
}

func TestVisibility_Allows(t *testing.T) {
	chef := VisibilityFor("chef")
	if !chef.Allows(CategoryFood) || chef.Allows(CategoryDrink) || chef.Allows(CategoryUnknown) {
		t.Errorf("chef visibility wrong: %+v", chef)
	}
	waiter := VisibilityFor("waiter")
	if waiter.Allows(CategoryUnknown) {
		t.Error("unknown category must never be visible")
	}
}

func TestVisibleItems(t *testing.T) {
	items := []model.OrderItem{
		{ID: "1", Category: "salad"},
		{ID: "2", Category: "drink"},
		{ID: "3", Category: "unknown"},
		{ID: "4", Category: "Dessert"},
	}

	got, hidden := VisibleItems(VisibilityFor("chef"), items)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "4" {
		t.Fatalf("chef items: got %+v", got)
	}
	if hidden != 2 {
		t.Errorf("hidden: got %d, want 2", hidden)
	}

	got, hidden = VisibleItems(VisibilityFor("barman"), items)
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("barman items: got %+v", got)
	}
	if hidden != 3 {
		t.Errorf("hidden: got %d, want 3", hidden)
	}

	got, hidden = VisibleItems(VisibilityFor(RoleUnknown), items)
	if len(got) != 0 || hidden != 4 {
		t.Errorf("unknown role: got %d items, %d hidden", len(got), hidden)
	}
}
