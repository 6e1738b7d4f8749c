package mongostore

import (
	"fmt"
	"time"

	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type orderDoc struct {
	ID                  string               `bson:"_id"`
	RestaurantID        string               `bson:"restaurantId"`
	Type                string               `bson:"orderType"`
	Status              string               `bson:"status"`
	Items               bson.RawValue        `bson:"items"`
	Subtotal            primitive.Decimal128 `bson:"subtotal"`
	Discount            primitive.Decimal128 `bson:"discount"`
	Tax                 primitive.Decimal128 `bson:"tax"`
	Total               primitive.Decimal128 `bson:"total"`
	TableID             string               `bson:"tableId,omitempty"`
	MapID               string               `bson:"mapId,omitempty"`
	TableNumber         int                  `bson:"tableNumber,omitempty"`
	CreatedBy           creatorDoc           `bson:"createdBy"`
	Notes               string               `bson:"notes,omitempty"`
	Payment             *paymentDoc          `bson:"payment,omitempty"`
	NeedsReconciliation bool                 `bson:"needsReconciliation"`
	CreatedAt           time.Time            `bson:"createdAt"`
	UpdatedAt           time.Time            `bson:"updatedAt"`
	Version             int64                `bson:"version"`
}

type itemDoc struct {
	ID       string               `bson:"id"`
	Name     string               `bson:"name"`
	Category string               `bson:"category"`
	Quantity int                  `bson:"quantity"`
	Price    primitive.Decimal128 `bson:"price"`
	Status   string               `bson:"status"`
	Notes    string               `bson:"notes,omitempty"`
	Dietary  []string             `bson:"dietaryRestrictions,omitempty"`
}

type creatorDoc struct {
	UserID string `bson:"userId"`
	Name   string `bson:"name"`
	Role   string `bson:"role"`
}

type paymentDoc struct {
	Method     string               `bson:"method"`
	Amount     primitive.Decimal128 `bson:"amount"`
	Tip        primitive.Decimal128 `bson:"tip"`
	Change     primitive.Decimal128 `bson:"change"`
	PaidAt     time.Time            `bson:"paidAt"`
	ReceivedBy string               `bson:"receivedBy"`
}

type tableMapDoc struct {
	ID           string    `bson:"_id"`
	RestaurantID string    `bson:"restaurantId"`
	Name         string    `bson:"name"`
	Layout       layoutDoc `bson:"layout"`
	UpdatedAt    time.Time `bson:"updatedAt"`
	Version      int64     `bson:"version"`
}

type layoutDoc struct {
	Tables []tableDoc `bson:"tables"`
}

type tableDoc struct {
	ID            string  `bson:"id"`
	Number        int     `bson:"number"`
	Seats         int     `bson:"seats"`
	Shape         string  `bson:"shape,omitempty"`
	Width         float64 `bson:"width,omitempty"`
	Height        float64 `bson:"height,omitempty"`
	X             float64 `bson:"x,omitempty"`
	Y             float64 `bson:"y,omitempty"`
	Status        string  `bson:"status"`
	ActiveOrderID string  `bson:"activeOrderId,omitempty"`
}

func toDec128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("%s out of decimal128 range: %w", d, err)
	}
	return v, nil
}

// fromDec128 reads an absent field, the zero Decimal128, as zero.
func fromDec128(v primitive.Decimal128) (decimal.Decimal, error) {
	if v == (primitive.Decimal128{}) {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimal128 %s: %w", v, err)
	}
	return d, nil
}

// decConv converts a run of money fields and keeps the first failure.
type decConv struct {
	err error
}

func (c *decConv) to(field string, d decimal.Decimal) primitive.Decimal128 {
	v, err := toDec128(d)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("encode %s: %w", field, err)
	}
	return v
}

func (c *decConv) from(field string, v primitive.Decimal128) decimal.Decimal {
	d, err := fromDec128(v)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("decode %s: %w", field, err)
	}
	return d
}

func toOrderDoc(o *model.Order) (orderDoc, error) {
	var conv decConv
	items := make([]itemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemDoc{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    conv.to("items."+it.ID+".price", it.Price),
			Status:   it.Status,
			Notes:    it.Notes,
			Dietary:  it.Dietary,
		}
	}
	// Always written as an array.
	t, raw, err := bson.MarshalValue(items)
	if err != nil {
		return orderDoc{}, fmt.Errorf("encode items: %w", err)
	}

	d := orderDoc{
		ID:                  o.ID,
		RestaurantID:        o.RestaurantID,
		Type:                o.Type,
		Status:              o.Status,
		Items:               bson.RawValue{Type: t, Value: raw},
		Subtotal:            conv.to("subtotal", o.Subtotal),
		Discount:            conv.to("discount", o.Discount),
		Tax:                 conv.to("tax", o.Tax),
		Total:               conv.to("total", o.Total),
		CreatedBy:           creatorDoc(o.CreatedBy),
		Notes:               o.Notes,
		NeedsReconciliation: o.NeedsReconciliation,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
		Version:             o.Version,
	}
	if o.Table != nil {
		d.TableID = o.Table.TableID
		d.MapID = o.Table.MapID
		d.TableNumber = o.Table.Number
	}
	if p := o.Payment; p != nil {
		d.Payment = &paymentDoc{
			Method:     p.Method,
			Amount:     conv.to("payment.amount", p.Amount),
			Tip:        conv.to("payment.tip", p.Tip),
			Change:     conv.to("payment.change", p.Change),
			PaidAt:     p.PaidAt,
			ReceivedBy: p.ReceivedBy,
		}
	}
	if conv.err != nil {
		return orderDoc{}, conv.err
	}
	return d, nil
}

func fromOrderDoc(d orderDoc) (*model.Order, error) {
	docs, err := decodeItems(d.Items)
	if err != nil {
		return nil, err
	}
	var conv decConv
	items := make([]model.OrderItem, len(docs))
	for i, it := range docs {
		items[i] = model.OrderItem{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    conv.from("items."+it.ID+".price", it.Price),
			Status:   it.Status,
			Notes:    it.Notes,
			Dietary:  it.Dietary,
		}
	}

	o := &model.Order{
		ID:                  d.ID,
		RestaurantID:        d.RestaurantID,
		Type:                d.Type,
		Status:              d.Status,
		Items:               items,
		Subtotal:            conv.from("subtotal", d.Subtotal),
		Discount:            conv.from("discount", d.Discount),
		Tax:                 conv.from("tax", d.Tax),
		Total:               conv.from("total", d.Total),
		CreatedBy:           model.Creator(d.CreatedBy),
		Notes:               d.Notes,
		NeedsReconciliation: d.NeedsReconciliation,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		Version:             d.Version,
	}
	if d.TableID != "" {
		o.Table = &model.TableRef{TableID: d.TableID, MapID: d.MapID, Number: d.TableNumber}
	}
	if p := d.Payment; p != nil {
		o.Payment = &model.Payment{
			Method:     p.Method,
			Amount:     conv.from("payment.amount", p.Amount),
			Tip:        conv.from("payment.tip", p.Tip),
			Change:     conv.from("payment.change", p.Change),
			PaidAt:     p.PaidAt,
			ReceivedBy: p.ReceivedBy,
		}
	}
	if conv.err != nil {
		return nil, conv.err
	}
	return o, nil
}

// decodeItems accepts an items array or a document keyed by position.
func decodeItems(v bson.RawValue) ([]itemDoc, error) {
	switch v.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return []itemDoc{}, nil
	case bsontype.Array:
		var items []itemDoc
		if err := v.Unmarshal(&items); err != nil {
			return nil, fmt.Errorf("items array: %w", err)
		}
		if items == nil {
			items = []itemDoc{}
		}
		return items, nil
	case bsontype.EmbeddedDocument:
		doc, ok := v.DocumentOK()
		if !ok {
			return nil, fmt.Errorf("items: malformed document")
		}
		elems, err := doc.Elements()
		if err != nil {
			return nil, fmt.Errorf("items map: %w", err)
		}
		byKey := make(map[string]bson.RawValue, len(elems))
		keys := make([]string, 0, len(elems))
		for _, e := range elems {
			byKey[e.Key()] = e.Value()
			keys = append(keys, e.Key())
		}
		ordered, err := store.IndexKeys(keys)
		if err != nil {
			return nil, err
		}
		items := make([]itemDoc, len(ordered))
		for i, k := range ordered {
			if err := byKey[k].Unmarshal(&items[i]); err != nil {
				return nil, fmt.Errorf("items[%s]: %w", k, err)
			}
		}
		return items, nil
	}
	return nil, fmt.Errorf("items: unexpected BSON type %s", v.Type)
}

func toTableMapDoc(m *model.TableMap) tableMapDoc {
	tables := make([]tableDoc, len(m.Layout.Tables))
	for i, t := range m.Layout.Tables {
		tables[i] = tableDoc(t)
	}
	return tableMapDoc{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Layout:       layoutDoc{Tables: tables},
		UpdatedAt:    m.UpdatedAt,
		Version:      m.Version,
	}
}

func fromTableMapDoc(d tableMapDoc) *model.TableMap {
	tables := make([]model.Table, len(d.Layout.Tables))
	for i, t := range d.Layout.Tables {
		tables[i] = model.Table(t)
	}
	return &model.TableMap{
		ID:           d.ID,
		RestaurantID: d.RestaurantID,
		Name:         d.Name,
		Layout:       model.Layout{Tables: tables},
		UpdatedAt:    d.UpdatedAt,
		Version:      d.Version,
	}
}
