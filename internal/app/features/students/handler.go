// internal/app/features/students/handler.go

// Package students serves staff-facing student management: registration
// with guardian pre-registration, the pickup dashboard, status updates, and
// soft deletion.
package students

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	classstore "github.com/dalemusser/pickuphub/internal/app/store/classes"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/authz"
	"github.com/dalemusser/pickuphub/internal/app/system/respond"
	"github.com/dalemusser/pickuphub/internal/app/system/timeouts"
	"github.com/dalemusser/pickuphub/internal/app/system/txn"
	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler holds dependencies for the student endpoints.
type Handler struct {
	client    *mongo.Client
	students  *studentstore.Store
	classes   *classstore.Store
	users     *userstore.Store
	links     *linkstore.Store
	pickups   *pickupstore.Store
	lifecycle *lifecycle.Service
	log       *zap.Logger
}

func NewHandler(client *mongo.Client, students *studentstore.Store, classes *classstore.Store, users *userstore.Store, links *linkstore.Store, pickups *pickupstore.Store, lifecycleSvc *lifecycle.Service, logger *zap.Logger) *Handler {
	return &Handler{
		client:    client,
		students:  students,
		classes:   classes,
		users:     users,
		links:     links,
		pickups:   pickups,
		lifecycle: lifecycleSvc,
		log:       logger,
	}
}

type guardianRegistration struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
}

type createRequest struct {
	ClassID   string                 `json:"class_id" validate:"required"`
	FullName  string                 `json:"full_name" validate:"required"`
	Guardians []guardianRegistration `json:"guardians" validate:"dive"`
}

type createResponse struct {
	Student   models.Student `json:"student"`
	Guardians []models.User  `json:"guardians"`
}

// Create handles POST /students. Guardian entries are pre-registered as
// invited accounts and linked to the student; the guardians later claim
// them through the activation flow.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	_, _, _, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	institutionID := authz.InstitutionID(r)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "class_id and full_name are required; guardians need full_name and phone")
		return
	}
	classID, err := primitive.ObjectIDFromHex(req.ClassID)
	if err != nil {
		respond.BadRequest(w, "class_id is not a valid id")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Long)
	defer cancel()

	cls, err := h.classes.GetByID(ctx, classID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Fault(w, h.log, fault.New(fault.NotFound, "class not found"))
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	if cls.InstitutionID != institutionID {
		respond.Fault(w, h.log, fault.New(fault.Unauthorized, "class belongs to another institution"))
		return
	}

	// The student insert and its guardian pre-registrations commit as one
	// unit; a failure partway through leaves nothing behind.
	var st models.Student
	var guardians []models.User
	terr := txn.WithTransaction(ctx, h.client, func(ctx context.Context) error {
		guardians = guardians[:0]
		created, serr := h.students.Create(ctx, models.Student{
			ClassID:       cls.ID,
			InstitutionID: cls.InstitutionID,
			FullName:      req.FullName,
		})
		if serr != nil {
			return serr
		}
		st = created
		for _, reg := range req.Guardians {
			g, gerr := h.users.EnsureInvitedGuardian(ctx, reg.Phone, reg.FullName)
			if gerr != nil {
				return gerr
			}
			if _, lerr := h.links.Add(ctx, models.GuardianLink{
				StudentID:     st.ID,
				GuardianID:    g.ID,
				InstitutionID: st.InstitutionID,
			}); lerr != nil && !errors.Is(lerr, linkstore.ErrDuplicateLink) {
				return lerr
			}
			guardians = append(guardians, *g)
		}
		return nil
	})
	if terr != nil {
		respond.Fault(w, h.log, terr)
		return
	}
	if guardians == nil {
		guardians = []models.User{}
	}

	respond.JSON(w, http.StatusCreated, createResponse{Student: st, Guardians: guardians})
}

// List handles GET /students: the staff pickup dashboard. Optional query
// parameters: class_id, and status (repeatable) to narrow the view.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	institutionID := authz.InstitutionID(r)

	filter := studentstore.ListFilter{InstitutionID: institutionID}
	if raw := r.URL.Query().Get("class_id"); raw != "" {
		classID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			respond.BadRequest(w, "class_id is not a valid id")
			return
		}
		filter.ClassID = &classID
	}
	for _, raw := range r.URL.Query()["status"] {
		s := status.Status(raw)
		if !status.IsValid(s) {
			respond.BadRequest(w, "unknown status "+raw)
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	students, err := h.students.List(ctx, filter)
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"students": students})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles PATCH /students/{studentID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	_, _, operatorID, ok := authz.PrincipalCtx(r)
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		respond.BadRequest(w, "student id is not valid")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.BadRequest(w, "status is required")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Medium)
	defer cancel()

	updated, err := h.lifecycle.RequestTransition(ctx, studentID, status.Status(req.Status), operatorID, authz.InstitutionID(r))
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /students/{studentID}: a soft delete. The record
// and its links stay behind for history, but the student disappears from
// every list, lookup, and lifecycle operation.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	studentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "studentID"))
	if err != nil {
		respond.BadRequest(w, "student id is not valid")
		return
	}

	ctx, cancel := timeouts.Within(r.Context(), timeouts.Short)
	defer cancel()

	st, err := h.students.GetByID(ctx, studentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Fault(w, h.log, fault.New(fault.NotFound, "student not found"))
		return
	}
	if err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	if st.InstitutionID != authz.InstitutionID(r) {
		respond.Fault(w, h.log, fault.New(fault.Unauthorized, "student belongs to another institution"))
		return
	}

	if err := h.students.SoftDelete(ctx, studentID); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	// A removed student cannot be mid-pickup; void anything still open so
	// the event list does not show an active pickup for a hidden child.
	if err := h.pickups.CancelOpenForStudent(ctx, studentID); err != nil {
		respond.Fault(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
