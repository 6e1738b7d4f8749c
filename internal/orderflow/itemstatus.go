package orderflow

import "github.com/meja-pos/api/internal/enum"

// itemChain is the advance sequence. finished sits outside it.
var itemChain = []string{
	enum.ItemStatusPending,
	enum.ItemStatusPreparing,
	enum.ItemStatusReady,
	enum.ItemStatusDelivered,
}

// ItemStatusRank orders item statuses: the chain is 0..3, finished is 4,
// anything unrecognised is -1.
func ItemStatusRank(s string) int {
	if s == enum.ItemStatusFinished {
		return len(itemChain)
	}
	for i, st := range itemChain {
		if st == s {
			return i
		}
	}
	return -1
}

// NextItemStatus returns the status one step along the chain, clamped at
// delivered. finished stays finished; unrecognised statuses start at pending.
func NextItemStatus(s string) string {
	if s == enum.ItemStatusFinished {
		return s
	}
	r := ItemStatusRank(s)
	if r < 0 {
		return enum.ItemStatusPending
	}
	if r+1 >= len(itemChain) {
		return enum.ItemStatusDelivered
	}
	return itemChain[r+1]
}

// ItemActionLabel describes what advancing from s does, for the status button.
func ItemActionLabel(s string) string {
	switch NextItemStatus(s) {
	case s:
		return ""
	case enum.ItemStatusPending:
		return "Reset to pending"
	case enum.ItemStatusPreparing:
		return "Start preparing"
	case enum.ItemStatusReady:
		return "Mark as ready"
	case enum.ItemStatusDelivered:
		return "Mark as delivered"
	}
	return ""
}

// CanFinishItem reports whether the direct finish action applies.
func CanFinishItem(s string) bool {
	return s != enum.ItemStatusFinished
}
