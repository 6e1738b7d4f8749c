package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/meja-pos/api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultSyncRetries = 3

// Errors returned by the order service.
var (
	ErrMissingLocation      = errors.New("restaurant and order identifiers are required")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidPrice         = errors.New("price must be >= 0")
	ErrInvalidAmount        = errors.New("discount and tax must be >= 0")
	ErrTableRequired        = errors.New("table orders need table_id and map_id")
	ErrTableOccupied        = errors.New("table already has an active order")
	ErrTableNotFound        = orderflow.ErrTableNotFound
	ErrTableMapNotFound     = errors.New("table map not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrItemNotVisible       = errors.New("item is not in a section visible to this role")
	ErrItemAlreadyFinished  = errors.New("item is already finished")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrPaymentRequired      = errors.New("closing an order requires a payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInsufficientPayment  = errors.New("payment amount is below the order total")
	ErrOrderLocked          = errors.New("order can no longer be changed")
	ErrConcurrentUpdate     = errors.New("order changed concurrently, please retry")
	ErrNoTable              = errors.New("order is not linked to a table")
)

// Store is the persistence port. Satisfied by memory.Store, pgstore.Store
// and mongostore.Store.
type Store interface {
	GetOrder(ctx context.Context, restaurantID, orderID string) (*model.Order, error)
	SaveOrder(ctx context.Context, o *model.Order) error
	DeleteOrder(ctx context.Context, restaurantID, orderID string) error
	ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error)
	GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error)
	SaveTableMap(ctx context.Context, m *model.TableMap) error
}

// Notifier delivers staff notifications. Failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Publisher pushes change events to live listeners of a restaurant.
type Publisher interface {
	Publish(restaurantID, eventType string, payload any)
}

// Event types sent through the Publisher.
const (
	EventOrderUpdated    = "order.updated"
	EventOrderDeleted    = "order.deleted"
	EventTableMapUpdated = "table_map.updated"
)

// OrderLocation addresses one order document.
type OrderLocation struct {
	RestaurantID string
	OrderID      string
}

func (l OrderLocation) validate() error {
	if l.RestaurantID == "" || l.OrderID == "" {
		return ErrMissingLocation
	}
	return nil
}

// NewItem is a line item as submitted by staff.
type NewItem struct {
	Name     string
	Category string
	Quantity int
	Price    decimal.Decimal
	Notes    string
	Dietary  []string
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	RestaurantID string
	OrderType    string
	Table        *model.TableRef
	CreatedBy    model.Creator
	Notes        string
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Items        []NewItem
}

// PaymentRequest closes an order.
type PaymentRequest struct {
	Method     string
	Amount     decimal.Decimal
	Tip        decimal.Decimal
	ReceivedBy string
}

// TransitionResult is what a mutating operation produced. SyncWarning is set
// when the order was saved but its table could not be updated; the order is
// then flagged for reconciliation.
type TransitionResult struct {
	Order       *model.Order
	Table       *model.Table
	SyncWarning string
}

// OrderService applies order lifecycle changes and keeps tables in line.
type OrderService struct {
	store       Store
	notifier    Notifier
	publisher   Publisher
	log         logrus.FieldLogger
	now         func() time.Time
	newID       func() string
	syncRetries uint64
	newBackOff  func() backoff.BackOff
	publicURL   string
}

type Option func(*OrderService)

func WithNotifier(n Notifier) Option {
	return func(s *OrderService) { s.notifier = n }
}

func WithPublisher(p Publisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *OrderService) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *OrderService) { s.newID = f }
}

// WithSyncRetries sets how many times a failed table write is retried.
func WithSyncRetries(n int) Option {
	return func(s *OrderService) {
		if n >= 0 {
			s.syncRetries = uint64(n)
		}
	}
}

// WithBackOff replaces the exponential backoff between table write retries.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *OrderService) { s.newBackOff = f }
}

// WithPublicURL sets the base used for links in notifications.
func WithPublicURL(u string) Option {
	return func(s *OrderService) { s.publicURL = u }
}

// NewOrderService creates a new OrderService.
func NewOrderService(st Store, opts ...Option) *OrderService {
	s := &OrderService{
		store:       st,
		log:         logrus.StandardLogger(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		syncRetries: defaultSyncRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "order_service")
	return s
}

// CreateOrder validates, prices and stores a new order, then claims its table.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*TransitionResult, error) {
	if req.RestaurantID == "" {
		return nil, ErrMissingLocation
	}
	if !enum.IsOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return nil, ErrInvalidAmount
	}
	items, err := s.buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	var table *model.TableRef
	if req.OrderType == enum.OrderTypeTable {
		if req.Table == nil || req.Table.TableID == "" || req.Table.MapID == "" {
			return nil, ErrTableRequired
		}
		if err := s.checkTableFree(ctx, req.RestaurantID, req.Table); err != nil {
			return nil, err
		}
		t := *req.Table
		table = &t
	}

	now := s.now()
	o := &model.Order{
		ID:           s.newID(),
		RestaurantID: req.RestaurantID,
		Type:         req.OrderType,
		Status:       enum.OrderStatusPending,
		Items:        items,
		Discount:     req.Discount,
		Tax:          req.Tax,
		Table:        table,
		CreatedBy:    req.CreatedBy,
		Notes:        req.Notes,
		CreatedAt:    now,
	}
	recalcTotals(o)

	return s.commit(ctx, o, "")
}

// checkTableFree rejects table orders for a missing or occupied table before
// anything is written.
func (s *OrderService) checkTableFree(ctx context.Context, restaurantID string, ref *model.TableRef) error {
	m, err := s.store.GetTableMap(ctx, restaurantID, ref.MapID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTableMapNotFound
		}
		return fmt.Errorf("get table map: %w", err)
	}
	idx := m.FindTable(ref.TableID)
	if idx < 0 {
		return ErrTableNotFound
	}
	if m.Layout.Tables[idx].ActiveOrderID != "" {
		return ErrTableOccupied
	}
	if ref.Number == 0 {
		ref.Number = m.Layout.Tables[idx].Number
	}
	return nil
}

// AddItems appends pending items to an open order.
func (s *OrderService) AddItems(ctx context.Context, loc OrderLocation, newItems []NewItem) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	items, err := s.buildItems(newItems)
	if err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if orderflow.IsTerminalOrderStatus(o.Status) {
		return nil, ErrOrderLocked
	}
	o.Items = append(o.Items, items...)
	recalcTotals(o)
	return s.commit(ctx, o, o.Status)
}

// AdvanceItem moves one item a step along pending→preparing→ready→delivered
// and re-aggregates the order status.
func (s *OrderService) AdvanceItem(ctx context.Context, loc OrderLocation, itemID, role string) (*TransitionResult, error) {
	return s.mutateItem(ctx, loc, itemID, role, func(it *model.OrderItem) error {
		it.Status = orderflow.NextItemStatus(it.Status)
		return nil
	})
}

// FinishItem marks one item finished regardless of where it is in the chain.
func (s *OrderService) FinishItem(ctx context.Context, loc OrderLocation, itemID, role string) (*TransitionResult, error) {
	return s.mutateItem(ctx, loc, itemID, role, func(it *model.OrderItem) error {
		if !orderflow.CanFinishItem(it.Status) {
			return ErrItemAlreadyFinished
		}
		it.Status = enum.ItemStatusFinished
		return nil
	})
}

func (s *OrderService) mutateItem(ctx context.Context, loc OrderLocation, itemID, role string, mutate func(*model.OrderItem) error) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if orderflow.IsLockedOrderStatus(o.Status) {
		return nil, ErrOrderLocked
	}
	idx := o.FindItem(itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	item := &o.Items[idx]
	vis := orderflow.VisibilityFor(orderflow.ParseRole(role))
	if !vis.Allows(orderflow.Classify(item.Category)) {
		return nil, ErrItemNotVisible
	}

	before := item.Status
	if err := mutate(item); err != nil {
		return nil, err
	}
	if item.Status == before {
		return &TransitionResult{Order: o}, nil
	}

	prevStatus := o.Status
	o.Status = orderflow.AggregateOrderStatus(o.Status, o.ItemStatuses())

	res, err := s.commit(ctx, o, prevStatus)
	if err != nil {
		return nil, err
	}
	if item.Status == enum.ItemStatusReady {
		s.notify(ctx, o, "Item ready", fmt.Sprintf("%s is ready%s", item.Name, tableSuffix(o)))
	}
	return res, nil
}

// UpdateStatus is the staff status dialog. Closing goes through CloseOrder.
func (s *OrderService) UpdateStatus(ctx context.Context, loc OrderLocation, status string) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	if !enum.IsOrderStatus(status) {
		return nil, ErrInvalidStatus
	}
	if status == enum.OrderStatusClosed {
		return nil, ErrPaymentRequired
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if orderflow.IsLockedOrderStatus(o.Status) {
		return nil, ErrOrderLocked
	}
	prev := o.Status
	o.Status = status
	return s.commit(ctx, o, prev)
}

// CloseOrder records a payment and closes the order. A payment below the
// total is rejected before anything is written. Tip is not counted towards
// the total.
func (s *OrderService) CloseOrder(ctx context.Context, loc OrderLocation, p PaymentRequest) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	if !enum.IsPaymentMethod(p.Method) {
		return nil, ErrInvalidPaymentMethod
	}
	if p.Tip.IsNegative() {
		return nil, ErrInvalidAmount
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if orderflow.IsLockedOrderStatus(o.Status) {
		return nil, ErrOrderLocked
	}
	if p.Amount.LessThan(o.Total) {
		return nil, fmt.Errorf("%w: paid %s, total %s", ErrInsufficientPayment, p.Amount.StringFixed(2), o.Total.StringFixed(2))
	}

	prev := o.Status
	o.Status = enum.OrderStatusClosed
	o.Payment = &model.Payment{
		Method:     p.Method,
		Amount:     p.Amount,
		Tip:        p.Tip,
		Change:     p.Amount.Sub(o.Total),
		PaidAt:     s.now(),
		ReceivedBy: p.ReceivedBy,
	}
	res, err := s.commit(ctx, o, prev)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, o, "Order closed", fmt.Sprintf("Paid %s%s", o.Total.StringFixed(2), tableSuffix(o)))
	return res, nil
}

// CancelOrder cancels an open order and frees its table.
func (s *OrderService) CancelOrder(ctx context.Context, loc OrderLocation) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if orderflow.IsLockedOrderStatus(o.Status) {
		return nil, ErrOrderLocked
	}
	prev := o.Status
	o.Status = enum.OrderStatusCancelled
	return s.commit(ctx, o, prev)
}

// DeleteOrder removes the order document and frees its table.
func (s *OrderService) DeleteOrder(ctx context.Context, loc OrderLocation) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteOrder(ctx, loc.RestaurantID, loc.OrderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("delete order: %w", err)
	}
	s.publish(o.RestaurantID, EventOrderDeleted, map[string]string{"id": o.ID})

	res := &TransitionResult{Order: o}
	if o.Table == nil {
		return res, nil
	}
	table, err := s.syncTableWithRetry(ctx, o, "")
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":   "delete_order",
			"order_id": o.ID,
			"table_id": o.Table.TableID,
		}).Warn("table not freed after order delete")
		res.SyncWarning = syncWarning(err)
		return res, nil
	}
	res.Table = table
	return res, nil
}

// GetTableMap returns a table map document.
func (s *OrderService) GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error) {
	if restaurantID == "" || mapID == "" {
		return nil, ErrMissingLocation
	}
	m, err := s.store.GetTableMap(ctx, restaurantID, mapID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTableMapNotFound
		}
		return nil, fmt.Errorf("get table map: %w", err)
	}
	return m, nil
}

// --- Helpers ---

func (s *OrderService) getOrder(ctx context.Context, loc OrderLocation) (*model.Order, error) {
	o, err := s.store.GetOrder(ctx, loc.RestaurantID, loc.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderService) buildItems(in []NewItem) ([]model.OrderItem, error) {
	if len(in) == 0 {
		return nil, ErrEmptyItems
	}
	items := make([]model.OrderItem, len(in))
	for i, it := range in {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}
		items[i] = model.OrderItem{
			ID:       s.newID(),
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    it.Price,
			Status:   enum.ItemStatusPending,
			Notes:    it.Notes,
			Dietary:  it.Dietary,
		}
	}
	return items, nil
}

// recalcTotals sets subtotal and total. total = subtotal - discount + tax,
// floored at zero.
func recalcTotals(o *model.Order) {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	o.Subtotal = subtotal
	total := subtotal.Sub(o.Discount).Add(o.Tax)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

func (s *OrderService) notify(ctx context.Context, o *model.Order, title, message string) {
	if s.notifier == nil {
		return
	}
	n := model.Notification{
		RestaurantID: o.RestaurantID,
		Title:        title,
		Message:      message,
		URL:          fmt.Sprintf("%s/restaurants/%s/orders/%s", s.publicURL, o.RestaurantID, o.ID),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action":   "notify",
			"order_id": o.ID,
			"title":    title,
		}).Warn("notification not delivered")
	}
}

func (s *OrderService) publish(restaurantID, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(restaurantID, eventType, payload)
}

func tableSuffix(o *model.Order) string {
	if o.Table == nil || o.Table.Number == 0 {
		return ""
	}
	return fmt.Sprintf(" (table %d)", o.Table.Number)
}
