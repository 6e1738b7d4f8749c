// Package store defines what the document stores share: errors and filters.
// Implementations live in the memory, pgstore and mongostore subpackages.
package store

import "errors"

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict means the document's version moved since it was read.
	ErrConflict = errors.New("document version conflict")
)

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	RestaurantID        string
	Status              string
	TableID             string
	NeedsReconciliation bool
	Limit               int
}
