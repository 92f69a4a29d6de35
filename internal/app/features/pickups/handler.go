// internal/app/features/pickups/handler.go

// Package pickups serves pickup initiation and ETA reporting for guardians,
// plus a staff listing of recent pickup events.
package pickups

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	"github.com/dalemusser/pickuphub/internal/app/system/authz"
	"github.com/dalemusser/pickuphub/internal/app/system/respond"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for the pickup endpoints.
type Handler struct {
	lifecycle *lifecycle.Service
	pickups   *pickupstore.Store
	log       *zap.Logger
}

func NewHandler(lifecycleSvc *lifecycle.Service, pickups *pickupstore.Store, logger *zap.Logger) *Handler {
	return &Handler{lifecycle: lifecycleSvc, pickups: pickups, log: logger}
}

type startRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// Start handles POST /pickups: a bound guardian announcing departure. The
// response carries the pickup event whose id is also the live room to join
// for ETA and completion traffic.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	_, _, guardianID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "student_id is required")
		return
	}
	studentID, err := primitive.ObjectIDFromHex(req.StudentID)
	if err != nil {
		respond.BadRequest(w, "student_id is not a valid id")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	ev, err := h.lifecycle.StartPickup(ctx, studentID, guardianID)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"pickup": ev, "room": ev.Room()})
}

type etaRequest struct {
	MinutesRemaining int `json:"minutes_remaining" validate:"min=0,max=720"`
}

// ReportETA handles POST /pickups/{pickupID}/eta. Pure broadcast: nothing
// is persisted, and watchers who are offline simply miss it.
func (h *Handler) ReportETA(w http.ResponseWriter, r *http.Request) {
	_, _, guardianID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	pickupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "pickupID"))
	if err != nil {
		respond.BadRequest(w, "pickup id is not valid")
		return
	}

	var req etaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "minutes_remaining must be between 0 and 720")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	if err := h.lifecycle.ReportETA(ctx, pickupID, guardianID, req.MinutesRemaining); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /pickups: recent pickup events for the operator's
// institution, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	events, err := h.pickups.ListForInstitution(ctx, authz.InstitutionID(r), 100)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"pickups": events})
}
