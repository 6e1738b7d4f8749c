package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meja-pos/api/internal/middleware"
	"github.com/meja-pos/api/internal/model"
	"github.com/sirupsen/logrus"
)

// TableMapServicer is satisfied by *service.OrderService.
type TableMapServicer interface {
	GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error)
}

// TableMapHandler serves the floor plan read by the table grid.
type TableMapHandler struct {
	svc TableMapServicer
	log logrus.FieldLogger
}

func NewTableMapHandler(svc TableMapServicer, log logrus.FieldLogger) *TableMapHandler {
	return &TableMapHandler{svc: svc, log: log.WithField("handler", "table_maps")}
}

// RegisterRoutes is mounted at /restaurants/{rid}/table-maps.
func (h *TableMapHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(anyRole...)).Get("/{mapID}", h.Get)
}

type tableResponse struct {
	ID            string  `json:"id"`
	Number        int     `json:"number"`
	Seats         int     `json:"seats"`
	Shape         string  `json:"shape,omitempty"`
	Width         float64 `json:"width,omitempty"`
	Height        float64 `json:"height,omitempty"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Status        string  `json:"status"`
	ActiveOrderID string  `json:"active_order_id,omitempty"`
}

type tableMapResponse struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Tables       []tableResponse `json:"tables"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Version      int64           `json:"version"`
}

// Get handles GET /restaurants/{rid}/table-maps/{mapID}.
func (h *TableMapHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetTableMap(r.Context(), chi.URLParam(r, "rid"), chi.URLParam(r, "mapID"))
	if err != nil {
		writeServiceError(w, h.log, "get_table_map", err)
		return
	}

	tables := make([]tableResponse, len(m.Layout.Tables))
	for i, t := range m.Layout.Tables {
		tables[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, tableMapResponse{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Tables:       tables,
		UpdatedAt:    m.UpdatedAt,
		Version:      m.Version,
	})
}

func toTableResponse(t model.Table) tableResponse {
	return tableResponse(t)
}
