package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Cart           *CartHandler
	Auth           *AuthHandler
	Tokens         TokenValidator
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Log            logrus.FieldLogger
}

// NewRouter mounts the cart API under /api and the health check at /health.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Log))

		r.Get("/login_status", cfg.Auth.LoginStatus)
		r.Post("/login", cfg.Auth.Login)
		r.Post("/logout", cfg.Auth.Logout)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Post("/", cfg.Cart.AddItem)
			r.Put("/{item_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/{item_id}", cfg.Cart.RemoveItem)
			r.Delete("/product/{product_id}", cfg.Cart.RemoveProduct)
		})
	})

	return r
}
