package orderflow

import (
	"errors"
	"testing"

	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/model"
)

func testTables() []model.Table {
	return []model.Table{
		{ID: "T1", Number: 1, Seats: 4, Status: enum.TableStatusPreparing, ActiveOrderID: "O1"},
		{ID: "T2", Number: 2, Seats: 2, Status: enum.TableStatusAvailable},
		{ID: "T3", Number: 3, Seats: 6, Status: enum.TableStatusReady, ActiveOrderID: "O3"},
	}
}

func TestTableStatusFor(t *testing.T) {
	tests := map[string]string{
		enum.OrderStatusPending:   enum.TableStatusOrdering,
		enum.OrderStatusPreparing: enum.TableStatusPreparing,
		enum.OrderStatusReady:     enum.TableStatusReady,
		enum.OrderStatusDelivered: enum.TableStatusServed,
		enum.OrderStatusFinished:  enum.TableStatusAvailable,
		enum.OrderStatusClosed:    enum.TableStatusAvailable,
		enum.OrderStatusCancelled: enum.TableStatusAvailable,
		enum.OrderStatusOrdering:  enum.TableStatusAvailable,
		enum.OrderStatusServed:    enum.TableStatusAvailable,
		"":                        enum.TableStatusAvailable,
	}
	for in, want := range tests {
		if got := TableStatusFor(in); got != want {
			t.Errorf("TableStatusFor(%q): got %s, want %s", in, got, want)
		}
	}
}

func TestSyncTable_DeliveredKeepsActiveOrder(t *testing.T) {
	tables := testTables()
	res, err := SyncTable(tables, "T1", "O1", enum.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Error("expected change")
	}
	if res.Table.Status != enum.TableStatusServed {
		t.Errorf("status: got %s, want served", res.Table.Status)
	}
	if res.Table.ActiveOrderID != "O1" {
		t.Errorf("activeOrderId: got %q, want O1", res.Table.ActiveOrderID)
	}
	// Copy-on-write: other entries unchanged, input untouched.
	if res.Tables[1] != tables[1] || res.Tables[2] != tables[2] {
		t.Error("other tables were modified")
	}
	if tables[0].Status != enum.TableStatusPreparing {
		t.Error("input slice was mutated")
	}
}

func TestSyncTable_TerminalClearsActiveOrder(t *testing.T) {
	for _, status := range []string{enum.OrderStatusFinished, enum.OrderStatusClosed} {
		res, err := SyncTable(testTables(), "T1", "O1", status)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", status, err)
		}
		if res.Table.Status != enum.TableStatusAvailable || res.Table.ActiveOrderID != "" {
			t.Errorf("%s: got %+v", status, res.Table)
		}
	}
}

func TestSyncTable_LinksNewOrder(t *testing.T) {
	res, err := SyncTable(testTables(), "T2", "O9", enum.OrderStatusPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Table.Status != enum.TableStatusOrdering || res.Table.ActiveOrderID != "O9" {
		t.Errorf("got %+v", res.Table)
	}
}

func TestSyncTable_Idempotent(t *testing.T) {
	first, err := SyncTable(testTables(), "T1", "O1", enum.OrderStatusReady)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := SyncTable(first.Tables, "T1", "O1", enum.OrderStatusReady)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Changed {
		t.Error("second sync should be a no-op")
	}
	for i := range first.Tables {
		if first.Tables[i] != second.Tables[i] {
			t.Errorf("table %d differs after second sync", i)
		}
	}
}

func TestSyncTable_NotFound(t *testing.T) {
	_, err := SyncTable(testTables(), "T404", "O1", enum.OrderStatusPending)
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("got %v, want ErrTableNotFound", err)
	}
}

func TestSyncTable_LinkedElsewhere(t *testing.T) {
	_, err := SyncTable(testTables(), "T3", "O1", enum.OrderStatusPreparing)
	if !errors.Is(err, ErrTableLinkedElsewhere) {
		t.Errorf("got %v, want ErrTableLinkedElsewhere", err)
	}

	// A stale order closing must not free a table now held by another order.
	res, err := SyncTable(testTables(), "T3", "O1", enum.OrderStatusClosed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed || res.Table.ActiveOrderID != "O3" {
		t.Errorf("stale close changed table: %+v", res.Table)
	}
}
