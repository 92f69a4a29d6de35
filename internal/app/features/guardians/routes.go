// internal/app/features/guardians/routes.go
package guardians

import (
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the guardian endpoints, mounted under
// /guardians.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleParent))
		r.Get("/me", h.Me)
		r.Post("/me/password", h.ChangePassword)
		r.Post("/me/children", h.Bind)
		r.Delete("/me/children/{studentID}", h.UnbindSelf)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleTeacher, models.RoleReceptionist, models.RoleAdmin))
		r.Delete("/{guardianID}/children/{studentID}", h.StaffUnbind)
	})

	return r
}
