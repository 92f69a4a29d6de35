// internal/app/features/pickups/routes.go
package pickups

import (
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the pickup endpoints, mounted under
// /pickups.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleParent))
		r.Post("/", h.Start)
		r.Post("/{pickupID}/eta", h.ReportETA)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleTeacher, models.RoleReceptionist, models.RoleAdmin))
		r.Get("/", h.List)
	})

	return r
}
