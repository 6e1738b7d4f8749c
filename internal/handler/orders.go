package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/middleware"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.TransitionResult, error)
	AddItems(ctx context.Context, loc service.OrderLocation, items []service.NewItem) (*service.TransitionResult, error)
	AdvanceItem(ctx context.Context, loc service.OrderLocation, itemID, role string) (*service.TransitionResult, error)
	FinishItem(ctx context.Context, loc service.OrderLocation, itemID, role string) (*service.TransitionResult, error)
	UpdateStatus(ctx context.Context, loc service.OrderLocation, status string) (*service.TransitionResult, error)
	CloseOrder(ctx context.Context, loc service.OrderLocation, p service.PaymentRequest) (*service.TransitionResult, error)
	CancelOrder(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error)
	DeleteOrder(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error)
	ViewOrder(ctx context.Context, loc service.OrderLocation, role string) (*service.OrderView, error)
	ListOrders(ctx context.Context, restaurantID string, f service.ListFilter, role string) ([]service.OrderView, error)
	SyncTable(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error)
	Reconcile(ctx context.Context, restaurantID string) (*service.ReconcileReport, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	log logrus.FieldLogger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log.WithField("handler", "orders")}
}

var (
	anyRole   = []string{enum.RoleOwner, enum.RoleAdmin, enum.RoleManager, enum.RoleChef, enum.RoleWaiter, enum.RoleBarman}
	orderTake = []string{enum.RoleOwner, enum.RoleAdmin, enum.RoleManager, enum.RoleWaiter, enum.RoleBarman}
	floor     = []string{enum.RoleOwner, enum.RoleAdmin, enum.RoleManager, enum.RoleWaiter}
	managers  = []string{enum.RoleOwner, enum.RoleAdmin, enum.RoleManager}
)

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a restaurant-scoped subrouter: /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(orderTake...)).Post("/", h.Create)
	r.With(middleware.RequireRole(anyRole...)).Get("/", h.List)
	r.With(middleware.RequireRole(managers...)).Post("/reconcile", h.Reconcile)

	r.Route("/{id}", func(r chi.Router) {
		r.With(middleware.RequireRole(anyRole...)).Get("/", h.Get)
		r.With(middleware.RequireRole(enum.RoleAdmin)).Delete("/", h.Delete)
		r.With(middleware.RequireRole(orderTake...)).Post("/items", h.AddItems)
		r.With(middleware.RequireRole(anyRole...)).Post("/items/{itemID}/advance", h.AdvanceItem)
		r.With(middleware.RequireRole(anyRole...)).Post("/items/{itemID}/finish", h.FinishItem)
		r.With(middleware.RequireRole(floor...)).Patch("/status", h.UpdateStatus)
		r.With(middleware.RequireRole(floor...)).Post("/close", h.Close)
		r.With(middleware.RequireRole(floor...)).Post("/cancel", h.Cancel)
		r.With(middleware.RequireRole(floor...)).Post("/sync-table", h.SyncTable)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType string             `json:"order_type" validate:"required,oneof=table counter takeaway"`
	TableID   string             `json:"table_id" validate:"required_if=OrderType table"`
	MapID     string             `json:"map_id" validate:"required_if=OrderType table"`
	Notes     string             `json:"notes" validate:"max=500"`
	Discount  string             `json:"discount" validate:"omitempty,numeric"`
	Tax       string             `json:"tax" validate:"omitempty,numeric"`
	Items     []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemRequest struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Category string   `json:"category" validate:"required"`
	Quantity int      `json:"quantity" validate:"gt=0"`
	Price    string   `json:"price" validate:"required,numeric"`
	Notes    string   `json:"notes" validate:"max=500"`
	Dietary  []string `json:"dietary_restrictions"`
}

type addItemsRequest struct {
	Items []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type closeOrderRequest struct {
	Method string `json:"method" validate:"required,oneof=cash card transfer"`
	Amount string `json:"amount" validate:"required,numeric"`
	Tip    string `json:"tip" validate:"omitempty,numeric"`
}

type orderItemResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Quantity int      `json:"quantity"`
	Price    string   `json:"price"`
	Status   string   `json:"status"`
	Notes    string   `json:"notes,omitempty"`
	Dietary  []string `json:"dietary_restrictions,omitempty"`
	Action   string   `json:"next_action,omitempty"`
}

type tableRefResponse struct {
	TableID     string `json:"table_id"`
	MapID       string `json:"map_id"`
	TableNumber int    `json:"table_number"`
}

type creatorResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type paymentResponse struct {
	Method     string    `json:"method"`
	Amount     string    `json:"amount"`
	Tip        string    `json:"tip"`
	Change     string    `json:"change"`
	PaidAt     time.Time `json:"paid_at"`
	ReceivedBy string    `json:"received_by"`
}

type orderResponse struct {
	ID                  string              `json:"id"`
	RestaurantID        string              `json:"restaurant_id"`
	OrderType           string              `json:"order_type"`
	Status              string              `json:"status"`
	Items               []orderItemResponse `json:"items"`
	HiddenItems         int                 `json:"hidden_items"`
	Scope               string              `json:"scope"`
	Subtotal            string              `json:"subtotal"`
	Discount            string              `json:"discount"`
	Tax                 string              `json:"tax"`
	Total               string              `json:"total"`
	Table               *tableRefResponse   `json:"table"`
	CreatedBy           creatorResponse     `json:"created_by"`
	Notes               string              `json:"notes,omitempty"`
	Payment             *paymentResponse    `json:"payment"`
	NeedsReconciliation bool                `json:"needs_reconciliation"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Version             int64               `json:"version"`
}

type transitionResponse struct {
	Order       orderResponse  `json:"order"`
	Table       *tableResponse `json:"table"`
	SyncWarning string         `json:"sync_warning,omitempty"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	items, ok := toNewItems(w, req.Items)
	if !ok {
		return
	}
	discount, ok := parseAmount(w, "discount", req.Discount)
	if !ok {
		return
	}
	tax, ok := parseAmount(w, "tax", req.Tax)
	if !ok {
		return
	}

	svcReq := service.CreateOrderRequest{
		RestaurantID: chi.URLParam(r, "rid"),
		OrderType:    req.OrderType,
		CreatedBy:    model.Creator{UserID: claims.UserID, Name: claims.Name, Role: claims.Role},
		Notes:        req.Notes,
		Discount:     discount,
		Tax:          tax,
		Items:        items,
	}
	if req.TableID != "" || req.MapID != "" {
		svcReq.Table = &model.TableRef{TableID: req.TableID, MapID: req.MapID}
	}

	res, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, h.log, "create_order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransitionResponse(res, claims.Role))
}

// List handles GET /restaurants/{rid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	q := r.URL.Query()
	limit := 50
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	views, err := h.svc.ListOrders(r.Context(), chi.URLParam(r, "rid"), service.ListFilter{
		Status:              q.Get("status"),
		TableID:             q.Get("table_id"),
		NeedsReconciliation: q.Get("needs_reconciliation") == "true",
		Limit:               limit,
	}, claims.Role)
	if err != nil {
		writeServiceError(w, h.log, "list_orders", err)
		return
	}

	resp := make([]orderResponse, len(views))
	for i, v := range views {
		resp[i] = toOrderResponse(v)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit})
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	v, err := h.svc.ViewOrder(r.Context(), orderLocation(r), claims.Role)
	if err != nil {
		writeServiceError(w, h.log, "get_order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*v))
}

// AddItems handles POST /restaurants/{rid}/orders/{id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	var req addItemsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	items, ok := toNewItems(w, req.Items)
	if !ok {
		return
	}
	h.transition(w, r, "add_items", func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error) {
		return h.svc.AddItems(ctx, loc, items)
	})
}

// AdvanceItem handles POST /restaurants/{rid}/orders/{id}/items/{itemID}/advance.
func (h *OrderHandler) AdvanceItem(w http.ResponseWriter, r *http.Request) {
	role := roleOf(r)
	itemID := chi.URLParam(r, "itemID")
	h.transition(w, r, "advance_item", func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error) {
		return h.svc.AdvanceItem(ctx, loc, itemID, role)
	})
}

// FinishItem handles POST /restaurants/{rid}/orders/{id}/items/{itemID}/finish.
func (h *OrderHandler) FinishItem(w http.ResponseWriter, r *http.Request) {
	role := roleOf(r)
	itemID := chi.URLParam(r, "itemID")
	h.transition(w, r, "finish_item", func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error) {
		return h.svc.FinishItem(ctx, loc, itemID, role)
	})
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.transition(w, r, "update_status", func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error) {
		return h.svc.UpdateStatus(ctx, loc, req.Status)
	})
}

// Close handles POST /restaurants/{rid}/orders/{id}/close.
func (h *OrderHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}
	tip, ok := parseAmount(w, "tip", req.Tip)
	if !ok {
		return
	}
	var receivedBy string
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		receivedBy = c.UserID
	}
	h.transition(w, r, "close_order", func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error) {
		return h.svc.CloseOrder(ctx, loc, service.PaymentRequest{
			Method:     req.Method,
			Amount:     amount,
			Tip:        tip,
			ReceivedBy: receivedBy,
		})
	})
}

// Cancel handles POST /restaurants/{rid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel_order", h.svc.CancelOrder)
}

// Delete handles DELETE /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "delete_order", h.svc.DeleteOrder)
}

// SyncTable handles POST /restaurants/{rid}/orders/{id}/sync-table.
func (h *OrderHandler) SyncTable(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "sync_table", h.svc.SyncTable)
}

// Reconcile handles POST /restaurants/{rid}/orders/reconcile.
func (h *OrderHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context(), chi.URLParam(r, "rid"))
	if err != nil {
		writeServiceError(w, h.log, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *OrderHandler) transition(w http.ResponseWriter, r *http.Request, action string,
	op func(ctx context.Context, loc service.OrderLocation) (*service.TransitionResult, error)) {

	res, err := op(r.Context(), orderLocation(r))
	if err != nil {
		writeServiceError(w, h.log, action, err)
		return
	}
	if res.SyncWarning != "" {
		h.log.WithFields(logrus.Fields{
			"action":   action,
			"order_id": res.Order.ID,
		}).Warn(res.SyncWarning)
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(res, roleOf(r)))
}

// --- Helpers ---

func orderLocation(r *http.Request) service.OrderLocation {
	return service.OrderLocation{
		RestaurantID: chi.URLParam(r, "rid"),
		OrderID:      chi.URLParam(r, "id"),
	}
}

func roleOf(r *http.Request) string {
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		return c.Role
	}
	return ""
}

func parseAmount(w http.ResponseWriter, field, s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" must be a decimal number")
		return decimal.Zero, false
	}
	return d, true
}

func toNewItems(w http.ResponseWriter, in []orderItemRequest) ([]service.NewItem, bool) {
	items := make([]service.NewItem, len(in))
	for i, it := range in {
		price, ok := parseAmount(w, "items["+strconv.Itoa(i)+"].price", it.Price)
		if !ok {
			return nil, false
		}
		items[i] = service.NewItem{
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    price,
			Notes:    it.Notes,
			Dietary:  it.Dietary,
		}
	}
	return items, true
}

func toOrderResponse(v service.OrderView) orderResponse {
	o := v.Order
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			Status:   it.Status,
			Notes:    it.Notes,
			Dietary:  it.Dietary,
			Action:   v.ItemActions[it.ID],
		}
	}

	resp := orderResponse{
		ID:                  o.ID,
		RestaurantID:        o.RestaurantID,
		OrderType:           o.Type,
		Status:              o.Status,
		Items:               items,
		HiddenItems:         v.HiddenItems,
		Scope:               string(v.Scope),
		Subtotal:            o.Subtotal.StringFixed(2),
		Discount:            o.Discount.StringFixed(2),
		Tax:                 o.Tax.StringFixed(2),
		Total:               o.Total.StringFixed(2),
		CreatedBy:           creatorResponse(o.CreatedBy),
		Notes:               o.Notes,
		NeedsReconciliation: o.NeedsReconciliation,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
		Version:             o.Version,
	}
	if o.Table != nil {
		resp.Table = &tableRefResponse{TableID: o.Table.TableID, MapID: o.Table.MapID, TableNumber: o.Table.Number}
	}
	if p := o.Payment; p != nil {
		resp.Payment = &paymentResponse{
			Method:     p.Method,
			Amount:     p.Amount.StringFixed(2),
			Tip:        p.Tip.StringFixed(2),
			Change:     p.Change.StringFixed(2),
			PaidAt:     p.PaidAt,
			ReceivedBy: p.ReceivedBy,
		}
	}
	return resp
}

func toTransitionResponse(res *service.TransitionResult, role string) transitionResponse {
	resp := transitionResponse{
		Order:       toOrderResponse(service.NewOrderView(*res.Order, role)),
		SyncWarning: res.SyncWarning,
	}
	if res.Table != nil {
		t := toTableResponse(*res.Table)
		resp.Table = &t
	}
	return resp
}
