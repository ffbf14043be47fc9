package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/photostudio-system/internal/middleware"
	"github.com/mmeshcher/photostudio-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса фотостудии.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Route("/api/profile", func(r chi.Router) {
		r.Post("/", h.CreateProfile)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/{email}", h.GetProfile)
			r.Put("/{email}", h.UpdateProfile)
			r.Get("/{email}/active-orders", h.GetActiveOrders)
			r.Post("/{email}/orders", h.UploadPhotos)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(h.authMiddleware.RequireRole(model.RoleAdmin))

		r.Get("/Orders", h.AdminOrders)
		r.Get("/Archive", h.AdminArchive)
		r.Get("/ReviewPhotos", h.AdminReviewPhotos)
		r.Get("/GetStats", h.AdminStats)

		r.Post("/UpdateStatus", h.UpdateStatus)
		r.Post("/MarkReviewed", h.MarkReviewed)
		r.Post("/UploadProcessedPhoto", h.UploadProcessedPhoto)
		r.Post("/UploadAndSendProcessedPhoto", h.UploadAndSendProcessedPhoto)

		r.Get("/ViewPhoto", h.ViewPhoto)
		r.Get("/DownloadPhoto", h.DownloadPhoto)
		r.Get("/ViewProcessedPhoto", h.ViewProcessedPhoto)
		r.Get("/DownloadProcessedPhoto", h.DownloadProcessedPhoto)
	})

	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.ListSubscriptions)
		r.Post("/", h.CreateSubscription)
		r.Get("/by-user/{email}", h.ListSubscriptionsByUser)
		r.Get("/by-user/{email}/current", h.GetCurrentSubscription)
		r.Get("/{id}", h.GetSubscription)
		r.Put("/{id}", h.UpdateSubscription)
		r.Put("/{id}/cancel", h.CancelSubscription)
		r.Delete("/{id}", h.DeleteSubscription)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
