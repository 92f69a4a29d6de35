// internal/app/features/students/routes.go
package students

import (
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the student endpoints, mounted under
// /students. Everything here is staff-only; guardians read their children
// through the guardians feature instead.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Use(auth.RequireRole(models.RoleTeacher, models.RoleReceptionist, models.RoleAdmin))

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/{studentID}/status", h.UpdateStatus)
	r.Delete("/{studentID}", h.Delete)
	return r
}
