package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabletap/api/internal/config"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/metrics"
	mw "github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/service"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method("GET", "/metrics", metrics.Handler())

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, cfg.AuthUpstreamURL)
	authHandler.RegisterRoutes(r)

	// Services
	sessionService := service.NewSessionService(pool, queries, func(db database.DBTX) service.SessionStore {
		return database.New(db)
	}, cfg.JWTSecret)
	orderService := service.NewOrderService(pool, queries, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	paymentService := service.NewPaymentService(pool, queries, func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	})
	directoryService := service.NewDirectoryService(pool, queries, func(db database.DBTX) service.DirectoryStore {
		return database.New(db)
	})
	staffService := service.NewStaffService(queries)

	// Session start is public: customers enter by scanning a table QR code
	// and hold no credentials yet.
	sessionHandler := handler.NewSessionHandler(sessionService)
	sessionHandler.RegisterPublicRoutes(r)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)
		sessionHandler.RegisterRoutes(r)

		orderHandler := handler.NewOrderHandler(orderService, queries)
		orderHandler.RegisterRoutes(r)

		paymentHandler := handler.NewPaymentHandler(paymentService, orderService)
		paymentHandler.RegisterRoutes(r)

		menuHandler := handler.NewMenuHandler(directoryService)
		menuHandler.RegisterRoutes(r)

		tableHandler := handler.NewTableHandler(directoryService)
		tableHandler.RegisterRoutes(r)

		branchHandler := handler.NewBranchHandler(directoryService)
		branchHandler.RegisterRoutes(r)

		restaurantHandler := handler.NewRestaurantHandler(directoryService)
		restaurantHandler.RegisterRoutes(r)

		staffHandler := handler.NewStaffHandler(staffService)
		staffHandler.RegisterRoutes(r)

		reportHandler := handler.NewReportHandler(queries)
		reportHandler.RegisterRoutes(r)
	})

	return r
}
