// Package orderflow holds the order lifecycle rules: who sees which items,
// how items advance, when an order is finished and what that means for its
// table. Everything here is pure; persistence lives in package service.
package orderflow

import (
	"strings"

	"github.com/meja-pos/api/internal/enum"
)

// Role is a recognised staff role. Unrecognised input parses to RoleUnknown.
type Role string

const RoleUnknown Role = ""

// ParseRole maps the auth collaborator's role string onto a Role.
func ParseRole(s string) Role {
	switch r := strings.ToLower(s); r {
	case enum.RoleOwner, enum.RoleAdmin, enum.RoleManager,
		enum.RoleChef, enum.RoleWaiter, enum.RoleBarman:
		return Role(r)
	}
	return RoleUnknown
}

func (r Role) Known() bool { return r != RoleUnknown }

// Visibility says which item buckets of an order a role may see.
type Visibility struct {
	CanViewFood   bool
	CanViewDrinks bool
}

// Scope names the partition a Visibility describes.
type Scope string

const (
	ScopeNone   Scope = "none"
	ScopeFood   Scope = "food"
	ScopeDrinks Scope = "drinks"
	ScopeBoth   Scope = "both"
)

// VisibilityFor returns the buckets visible to role. Unknown roles see nothing.
func VisibilityFor(role Role) Visibility {
	switch string(role) {
	case enum.RoleChef:
		return Visibility{CanViewFood: true}
	case enum.RoleBarman:
		return Visibility{CanViewDrinks: true}
	case enum.RoleWaiter, enum.RoleOwner, enum.RoleAdmin, enum.RoleManager:
		return Visibility{CanViewFood: true, CanViewDrinks: true}
	}
	return Visibility{}
}

func (v Visibility) Scope() Scope {
	switch {
	case v.CanViewFood && v.CanViewDrinks:
		return ScopeBoth
	case v.CanViewFood:
		return ScopeFood
	case v.CanViewDrinks:
		return ScopeDrinks
	}
	return ScopeNone
}

// Allows reports whether an item of category c is visible.
func (v Visibility) Allows(c Category) bool {
	switch c {
	case CategoryFood:
		return v.CanViewFood
	case CategoryDrink:
		return v.CanViewDrinks
	}
	return false
}
