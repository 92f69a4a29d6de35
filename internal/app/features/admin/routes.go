// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the admin endpoints, mounted under /admin.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Institution creation sits outside the admin gate: the handler lets
	// an anonymous caller through only while no institution exists yet, so
	// first boot can seed the institution and its admin.
	r.Post("/institutions", h.CreateInstitution)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Use(auth.RequireRole(models.RoleAdmin))

		r.Post("/classes", h.CreateClass)
		r.Get("/classes", h.ListClasses)
		r.Post("/staff", h.CreateStaff)
		r.Post("/users/{userID}/deactivate", h.DeactivateUser)
		r.Post("/reset-statuses", h.ResetStatuses)
	})
	return r
}
