// internal/app/features/live/routes.go
package live

import (
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter for the live websocket endpoint, mounted
// under /live.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.Serve)
	return r
}
