package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meja-pos/api/internal/config"
	"github.com/meja-pos/api/internal/handler"
	mw "github.com/meja-pos/api/internal/middleware"
	"github.com/meja-pos/api/internal/ws"
	"github.com/sirupsen/logrus"
)

// Service is everything the HTTP layer needs from the order service.
type Service interface {
	handler.OrderServicer
	handler.TableMapServicer
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, restaurant scoping, and role-based middleware as needed.
// checks back the /ready endpoint.
func New(cfg *config.Config, svc Service, hub *ws.Hub, log logrus.FieldLogger, checks ...handler.ReadyCheck) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ready", handler.Ready(checks, log))

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/restaurants/{rid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			orderHandler := handler.NewOrderHandler(svc, log)
			r.Route("/orders", orderHandler.RegisterRoutes)

			tableMapHandler := handler.NewTableMapHandler(svc, log)
			r.Route("/table-maps", tableMapHandler.RegisterRoutes)
		})
	})

	log.Debug("router initialized")
	return r
}
