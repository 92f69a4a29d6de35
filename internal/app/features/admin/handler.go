// internal/app/features/admin/handler.go

// Package admin serves institution administration: institution and class
// setup, staff accounts, deactivation, and the manual status-reset trigger.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	classstore "github.com/dalemusser/pickuphub/internal/app/store/classes"
	institutionstore "github.com/dalemusser/pickuphub/internal/app/store/institutions"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/app/system/authz"
	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
	"github.com/dalemusser/pickuphub/internal/app/system/respond"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for the admin endpoints.
type Handler struct {
	institutions *institutionstore.Store
	classes      *classstore.Store
	users        *userstore.Store
	lifecycle    *lifecycle.Service
	log          *zap.Logger
}

func NewHandler(institutions *institutionstore.Store, classes *classstore.Store, users *userstore.Store, lifecycleSvc *lifecycle.Service, logger *zap.Logger) *Handler {
	return &Handler{
		institutions: institutions,
		classes:      classes,
		users:        users,
		lifecycle:    lifecycleSvc,
		log:          logger,
	}
}

type institutionAdminRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type createInstitutionRequest struct {
	Name     string                   `json:"name" validate:"required"`
	Code     string                   `json:"code" validate:"required,min=4,max=16"`
	TimeZone string                   `json:"time_zone"`
	Admin    *institutionAdminRequest `json:"admin"`
}

type createInstitutionResponse struct {
	Institution models.Institution `json:"institution"`
	Admin       *models.User       `json:"admin,omitempty"`
}

// CreateInstitution handles POST /admin/institutions. While no institution
// exists the endpoint is open, so first boot can seed the institution along
// with its admin account; from then on only admins may call it.
func (h *Handler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	p, signedIn := auth.CurrentPrincipal(r)
	isAdmin := signedIn && strings.EqualFold(p.Role, models.RoleAdmin)

	var req createInstitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "name and code (4-16 chars) are required; admin needs full_name, phone, password (8+ chars)")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	if !isAdmin {
		n, err := h.institutions.Count(ctx)
		if err != nil {
			respond.Fault(w, h.log, err)
			return
		}
		if n > 0 {
			respond.Fault(w, h.log, fault.New(fault.Unauthorized, "institution setup is restricted to admins"))
			return
		}
		if req.Admin == nil {
			respond.BadRequest(w, "first-boot setup must include an admin account")
			return
		}
	}

	inst, err := h.institutions.Create(ctx, models.Institution{
		Name:     req.Name,
		Code:     req.Code,
		TimeZone: req.TimeZone,
	})
	if errors.Is(err, institutionstore.ErrDuplicateCode) {
		respond.Fault(w, h.log, fault.New(fault.Conflict, "institution code is already in use"))
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}

	resp := createInstitutionResponse{Institution: inst}
	if req.Admin != nil {
		hash, herr := passwd.Hash(req.Admin.Password)
		if herr != nil {
			respond.BadRequest(w, "password is too short")
			return
		}
		u, uerr := h.users.Create(ctx, models.User{
			Phone:          req.Admin.Phone,
			FullName:       req.Admin.FullName,
			HashedPassword: hash,
			Role:           models.RoleAdmin,
			Status:         models.AccountActive,
			InstitutionID:  &inst.ID,
		})
		if errors.Is(uerr, userstore.ErrDuplicatePhone) {
			respond.Fault(w, h.log, fault.New(fault.Conflict, "phone is already registered"))
			return
		}
		if uerr != nil {
			respond.Fault(w, h.log, uerr)
			return
		}
		resp.Admin = &u
	}
	respond.JSON(w, http.StatusCreated, resp)
}

type createClassRequest struct {
	Name      string `json:"name" validate:"required"`
	TeacherID string `json:"teacher_id"`
}

// CreateClass handles POST /admin/classes within the admin's institution.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "name is required")
		return
	}

	cls := models.Class{
		InstitutionID: authz.InstitutionID(r),
		Name:          req.Name,
	}
	if req.TeacherID != "" {
		teacherID, err := primitive.ObjectIDFromHex(req.TeacherID)
		if err != nil {
			respond.BadRequest(w, "teacher_id is not a valid id")
			return
		}
		cls.TeacherID = &teacherID
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	created, err := h.classes.Create(ctx, cls)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

// ListClasses handles GET /admin/classes.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	classes, err := h.classes.ListByInstitution(ctx, authz.InstitutionID(r))
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"classes": classes})
}

type createStaffRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=teacher receptionist admin"`
}

// CreateStaff handles POST /admin/staff: an active staff account in the
// admin's institution, ready to sign in.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "full_name, phone, password (8+ chars), and a staff role are required")
		return
	}

	hash, err := passwd.Hash(req.Password)
	if err != nil {
		respond.BadRequest(w, "password is too short")
		return
	}

	institutionID := authz.InstitutionID(r)

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	u, err := h.users.Create(ctx, models.User{
		Phone:          req.Phone,
		FullName:       req.FullName,
		HashedPassword: hash,
		Role:           req.Role,
		Status:         models.AccountActive,
		InstitutionID:  &institutionID,
	})
	if errors.Is(err, userstore.ErrDuplicatePhone) {
		respond.Fault(w, h.log, fault.New(fault.Conflict, "phone is already registered"))
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, u)
}

// DeactivateUser handles POST /admin/users/{userID}/deactivate: the soft
// removal of a staff or guardian account. Deactivated accounts cannot
// authenticate and stop counting against any binding cap.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		respond.BadRequest(w, "user id is not valid")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	target, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Fault(w, h.log, fault.New(fault.NotFound, "user not found"))
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	if target.InstitutionID != nil && *target.InstitutionID != authz.InstitutionID(r) {
		respond.Fault(w, h.log, fault.New(fault.Unauthorized, "user belongs to another institution"))
		return
	}

	if err := h.users.Deactivate(ctx, userID); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetStatuses handles POST /admin/reset-statuses: the manual trigger for
// the same bulk reset the daily worker runs.
func (h *Handler) ResetStatuses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.Within(r.Context(), timeouts.Batch)
	defer cancel()

	count, err := h.lifecycle.ResetAll(ctx)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"students_reset": count})
}
