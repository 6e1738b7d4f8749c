package orderflow

import (
	"testing"

	"github.com/meja-pos/api/internal/enum"
)

func TestNextItemStatus(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{enum.ItemStatusPending, enum.ItemStatusPreparing},
		{enum.ItemStatusPreparing, enum.ItemStatusReady},
		{enum.ItemStatusReady, enum.ItemStatusDelivered},
		{enum.ItemStatusDelivered, enum.ItemStatusDelivered},
		{enum.ItemStatusFinished, enum.ItemStatusFinished},
		{"", enum.ItemStatusPending},
		{"burnt", enum.ItemStatusPending},
	}
	for _, tt := range tests {
		if got := NextItemStatus(tt.in); got != tt.want {
			t.Errorf("NextItemStatus(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNextItemStatus_Monotonic(t *testing.T) {
	s := enum.ItemStatusPending
	rank := ItemStatusRank(s)
	for i := 0; i < 10; i++ {
		next := NextItemStatus(s)
		r := ItemStatusRank(next)
		if r < rank {
			t.Fatalf("rank decreased: %s(%d) -> %s(%d)", s, rank, next, r)
		}
		s, rank = next, r
	}
	if s != enum.ItemStatusDelivered {
		t.Errorf("final status: got %s, want delivered", s)
	}
}

func TestItemActionLabel(t *testing.T) {
	if got := ItemActionLabel(enum.ItemStatusPending); got != "Start preparing" {
		t.Errorf("pending label: got %q", got)
	}
	if got := ItemActionLabel(enum.ItemStatusReady); got != "Mark as delivered" {
		t.Errorf("ready label: got %q", got)
	}
	if got := ItemActionLabel(enum.ItemStatusDelivered); got != "" {
		t.Errorf("delivered label: got %q, want empty", got)
	}
	if got := ItemActionLabel(enum.ItemStatusFinished); got != "" {
		t.Errorf("finished label: got %q, want empty", got)
	}
}

func TestCanFinishItem(t *testing.T) {
	for _, s := range []string{enum.ItemStatusPending, enum.ItemStatusPreparing, enum.ItemStatusReady, enum.ItemStatusDelivered} {
		if !CanFinishItem(s) {
			t.Errorf("%s should be finishable", s)
		}
	}
	if CanFinishItem(enum.ItemStatusFinished) {
		t.Error("finished item should not be finishable again")
	}
}
