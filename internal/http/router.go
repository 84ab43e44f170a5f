package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

type RouterOptions struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	Limiter        *RateLimiter
	Log            logrus.FieldLogger
}

// NewRouter mounts the marketplace API under /api/v1.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(opts.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler)
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Limit)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.RequestTimeout))
			r.Use(middleware.Compress(5))

			r.Post("/clients", h.CreateClient)

			r.Group(func(r chi.Router) {
				r.Use(ClientAuth(h.tokens))

				r.Route("/auth", func(r chi.Router) {
					r.Post("/register", h.Register)
					r.Post("/signin", h.SignIn)
					r.Post("/signout", h.SignOut)
				})
				r.Get("/session", h.GetSession)

				r.Route("/products", func(r chi.Router) {
					r.Get("/", h.ListProducts)
					r.Post("/", h.AddProduct)
					r.Get("/{product_id}", h.GetProduct)
				})
				r.Get("/farmer/products", h.FarmerProducts)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", h.GetCart)
					r.Delete("/", h.ClearCart)
					r.Post("/items", h.AddItem)
					r.Put("/items/{product_id}", h.UpdateQuantity)
					r.Delete("/items/{product_id}", h.RemoveItem)
				})

				r.Route("/checkout", func(r chi.Router) {
					r.Get("/", h.GetCheckout)
					r.Post("/", h.Checkout)
				})
			})
		})

		// long-lived, so outside the request timeout
		r.With(ClientAuth(h.tokens)).Get("/stream", h.Stream)
	})

	return r
}
