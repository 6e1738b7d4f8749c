package pgstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/store"
)

// decodeOrder reads an order document whose items may be a JSON array or an
// object keyed by position ({"0": {...}, "1": {...}}).
func decodeOrder(raw []byte) (*model.Order, error) {
	var wire struct {
		model.Order
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	o := wire.Order
	items, err := decodeItems(wire.Items)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func decodeItems(raw json.RawMessage) ([]model.OrderItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []model.OrderItem{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []model.OrderItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("items array: %w", err)
		}
		return items, nil
	case '{':
		var byIndex map[string]model.OrderItem
		if err := json.Unmarshal(trimmed, &byIndex); err != nil {
			return nil, fmt.Errorf("items map: %w", err)
		}
		keys := make([]string, 0, len(byIndex))
		for k := range byIndex {
			keys = append(keys, k)
		}
		ordered, err := store.IndexKeys(keys)
		if err != nil {
			return nil, err
		}
		items := make([]model.OrderItem, len(ordered))
		for i, k := range ordered {
			items[i] = byIndex[k]
		}
		return items, nil
	}
	return nil, fmt.Errorf("items: unexpected JSON %q", trimmed[:1])
}
