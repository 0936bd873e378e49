package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Qaiser2raza/fireflow-api/internal/config"
	"github.com/Qaiser2raza/fireflow-api/internal/database"
	"github.com/Qaiser2raza/fireflow-api/internal/enum"
	"github.com/Qaiser2raza/fireflow-api/internal/handler"
	mw "github.com/Qaiser2raza/fireflow-api/internal/middleware"
	"github.com/Qaiser2raza/fireflow-api/internal/service"
	"github.com/Qaiser2raza/fireflow-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, restaurant scoping, and role-based middleware.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// WebSocket route for POS displays (KDS, floor plan, rider board).
	// Authenticates via ?token= because browsers cannot set WS headers.
	r.Get("/ws/restaurants/{rid}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	kitchenService := service.NewKitchenService(pool, func(db database.DBTX) service.KitchenStore {
		return database.New(db)
	})
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	deliveryService := service.NewDeliveryService(pool, func(db database.DBTX) service.DeliveryStore {
		return database.New(db)
	})
	settlementService := service.NewSettlementService(pool, func(db database.DBTX) service.SettlementStore {
		return database.New(db)
	})
	drawerService := service.NewDrawerService(pool, func(db database.DBTX) service.DrawerStore {
		return database.New(db)
	})

	orderHandler := handler.NewOrderHandler(orderService, deliveryService, hub)
	kitchenHandler := handler.NewKitchenHandler(kitchenService, hub)
	tableHandler := handler.NewTableHandler(tableService, hub)
	driverHandler := handler.NewDriverHandler(deliveryService, settlementService)
	drawerHandler := handler.NewDrawerHandler(drawerService)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)

			r.Route("/orders", orderHandler.RegisterRoutes)

			r.Route("/kitchen", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleKitchen, enum.UserRoleManager, enum.UserRoleOwner))
				kitchenHandler.RegisterRoutes(r)
			})

			r.Route("/tables", tableHandler.RegisterRoutes)

			r.Route("/drivers", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleOwner))
				driverHandler.RegisterRoutes(r)
			})

			r.Route("/drawer", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleManager, enum.UserRoleCashier, enum.UserRoleOwner))
				drawerHandler.RegisterRoutes(r)
			})
		})
	})

	return r
}
