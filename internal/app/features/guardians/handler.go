// internal/app/features/guardians/handler.go

// Package guardians serves the guardian-facing account surface: the bound
// children aggregate, binding and unbinding, and credential changes. It
// also carries the staff-side unbind endpoint, since both sides of the
// operation live in the binding authority.
package guardians

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/pickuphub/internal/app/core/binding"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/authz"
	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
	"github.com/dalemusser/pickuphub/internal/app/system/respond"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for the guardian endpoints.
type Handler struct {
	binding *binding.Service
	users   *userstore.Store
	log     *zap.Logger
}

func NewHandler(bindingSvc *binding.Service, users *userstore.Store, logger *zap.Logger) *Handler {
	return &Handler{binding: bindingSvc, users: users, log: logger}
}

// Me handles GET /guardians/me: the signed-in guardian and every bound
// child, fully populated.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	_, _, guardianID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	g, err := h.binding.GuardianChildren(ctx, guardianID)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, g)
}

type bindRequest struct {
	InstitutionCode string `json:"institution_code" validate:"required"`
	StudentFullName string `json:"student_full_name" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
}

// Bind handles POST /guardians/me/children. The phone in the body is the
// ownership proof: it must match a guardian staff pre-registered for the
// named student.
func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	_, _, guardianID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "institution_code, student_full_name, and phone are required")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Long)
	defer cancel()

	g, err := h.binding.Bind(ctx, guardianID, req.InstitutionCode, req.StudentFullName, req.Phone)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, g)
}

// UnbindSelf handles DELETE /guardians/me/children/{studentID}.
func (h *Handler) UnbindSelf(w http.ResponseWriter, r *http.Request) {
	_, _, guardianID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		respond.BadRequest(w, "student id is not valid")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	if err := h.binding.Unbind(ctx, studentID, guardianID); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StaffUnbind handles DELETE /guardians/{guardianID}/children/{studentID},
// the staff-side revocation of a guardian's access to a student.
func (h *Handler) StaffUnbind(w http.ResponseWriter, r *http.Request) {
	guardianID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "guardianID"))
	if err != nil {
		respond.BadRequest(w, "guardian id is not valid")
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		respond.BadRequest(w, "student id is not valid")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	if err := h.binding.Unbind(ctx, studentID, guardianID); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordRequest struct {
	Current string `json:"current" validate:"required"`
	New     string `json:"new" validate:"required,min=8"`
}

// ChangePassword handles POST /guardians/me/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	_, _, userID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "current and new (8+ chars) are required")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	u, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	if !passwd.Verify(u.HashedPassword, req.Current) {
		respond.JSON(w, http.StatusForbidden, map[string]string{"error": "current password is incorrect"})
		return
	}

	hash, err := passwd.Hash(req.New)
	if err != nil {
		respond.BadRequest(w, "new password is too short")
		return
	}
	if err := h.users.UpdatePassword(ctx, userID, hash); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
