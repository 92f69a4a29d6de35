// internal/app/core/lifecycle/lifecycle.go

// Package lifecycle owns every mutation of a student's pickup status. All
// writes go through a compare-and-set keyed on the status the caller
// observed, so two staff members racing on the same student resolve to one
// winner and one typed fault.
package lifecycle

import (
	"context"
	"errors"

	"github.com/dalemusser/pickuphub/internal/app/core/notify"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Service struct {
	students *studentstore.Store
	pickups  *pickupstore.Store
	links    *linkstore.Store
	dispatch *notify.Dispatcher
	reg      *registry.Registry
	log      *zap.Logger
}

func NewService(students *studentstore.Store, pickups *pickupstore.Store, links *linkstore.Store, dispatch *notify.Dispatcher, reg *registry.Registry, log *zap.Logger) *Service {
	return &Service{
		students: students,
		pickups:  pickups,
		links:    links,
		dispatch: dispatch,
		reg:      reg,
		log:      log,
	}
}

// allowed reports whether moving from from to to is legal. Beyond the
// transition table, staff may close out any student who is not already in a
// terminal state; that override exists so the desk can hand a child over
// even when the day's flow was never recorded.
func allowed(from, to status.Status) bool {
	if status.CanTransition(from, to) {
		return true
	}
	return to == status.PickupCompleted && !status.IsTerminal(from)
}

// RequestTransition moves a student to newStatus on behalf of a staff
// operator. The operator must belong to the student's institution.
func (s *Service) RequestTransition(ctx context.Context, studentID primitive.ObjectID, newStatus status.Status, operatorID, operatorInstitution primitive.ObjectID) (*models.Student, error) {
	if !status.IsValid(newStatus) {
		return nil, fault.New(fault.InvalidTransition, "unknown status %q", newStatus)
	}

	st, err := s.students.GetByID(ctx, studentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "student %s not found", studentID.Hex())
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading student")
	}
	if st.InstitutionID != operatorInstitution {
		return nil, fault.New(fault.Unauthorized, "student belongs to another institution")
	}

	updated, from, err := s.transition(ctx, st, newStatus)
	if err != nil {
		return nil, err
	}

	s.log.Info("student status changed",
		zap.String("student_id", st.ID.Hex()),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)),
		zap.String("operator_id", operatorID.Hex()))

	if newStatus == status.PickupCompleted {
		s.closePickups(ctx, updated.ID)
	}
	s.dispatch.StudentStatusChanged(*updated, from, newStatus)
	return updated, nil
}

// transition applies the legality check and compare-and-set. On a CAS miss
// it re-reads once and retries against the fresh status; a second miss is
// surfaced as Unavailable rather than looping.
func (s *Service) transition(ctx context.Context, st *models.Student, to status.Status) (*models.Student, status.Status, error) {
	from := st.Status
	if !allowed(from, to) {
		return nil, from, fault.Transition(from, to)
	}

	updated, err := s.students.CompareAndSetStatus(ctx, st.ID, from, to)
	if errors.Is(err, studentstore.ErrStatusChanged) {
		fresh, rerr := s.students.GetByID(ctx, st.ID)
		if errors.Is(rerr, mongo.ErrNoDocuments) {
			return nil, from, fault.New(fault.NotFound, "student %s not found", st.ID.Hex())
		}
		if rerr != nil {
			return nil, from, fault.Wrap(fault.Unavailable, rerr, "re-reading student after contended update")
		}
		from = fresh.Status
		if !allowed(from, to) {
			return nil, from, fault.Transition(from, to)
		}
		updated, err = s.students.CompareAndSetStatus(ctx, st.ID, from, to)
		if errors.Is(err, studentstore.ErrStatusChanged) {
			return nil, from, fault.Wrap(fault.Unavailable, err, "student %s contended twice", st.ID.Hex())
		}
	}
	if err != nil {
		return nil, from, fault.Wrap(fault.Unavailable, err, "persisting status")
	}
	return updated, from, nil
}

// StartPickup records that a bound guardian has departed to collect the
// student. The student moves to PARENT_EN_ROUTE and a pickup event opens;
// its id is the room that staff and peer guardians can watch for ETA and
// completion traffic.
func (s *Service) StartPickup(ctx context.Context, studentID, guardianID primitive.ObjectID) (*models.PickupEvent, error) {
	st, err := s.students.GetByID(ctx, studentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "student %s not found", studentID.Hex())
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading student")
	}

	bound, err := s.links.Exists(ctx, studentID, guardianID)
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "checking guardian link")
	}
	if !bound {
		return nil, fault.New(fault.Unauthorized, "guardian is not linked to this student")
	}

	// PARENT_EN_ROUTE is entered only here, so the eligibility check stands
	// in for the transition table.
	updated, from, err := s.casEnRoute(ctx, st)
	if err != nil {
		return nil, err
	}

	ev, err := s.pickups.Create(ctx, models.PickupEvent{
		StudentID:     st.ID,
		GuardianID:    guardianID,
		InstitutionID: st.InstitutionID,
	})
	if err != nil {
		// The status already moved; the pickup can still complete through
		// the staff flow, so log instead of unwinding.
		s.log.Error("pickup event insert failed after status change",
			zap.String("student_id", st.ID.Hex()),
			zap.Error(err))
		return nil, fault.Wrap(fault.Unavailable, err, "recording pickup")
	}

	s.log.Info("pickup started",
		zap.String("pickup_id", ev.ID.Hex()),
		zap.String("student_id", st.ID.Hex()),
		zap.String("guardian_id", guardianID.Hex()))

	s.reg.BroadcastToRoom(ctx, ev.Room(), registry.Message{
		Type: "guardian_departed",
		Payload: map[string]any{
			"pickup_id":   ev.ID.Hex(),
			"student_id":  st.ID.Hex(),
			"guardian_id": guardianID.Hex(),
		},
	})
	s.dispatch.StudentStatusChanged(*updated, from, status.ParentEnRoute)
	return &ev, nil
}

// casEnRoute moves st to PARENT_EN_ROUTE if its current status is pickup
// eligible, with one re-read on contention.
func (s *Service) casEnRoute(ctx context.Context, st *models.Student) (*models.Student, status.Status, error) {
	from := st.Status
	for attempt := 0; ; attempt++ {
		if from == status.ParentEnRoute {
			return nil, from, fault.New(fault.Conflict, "a pickup is already in progress for %s", st.FullName)
		}
		if !status.PickupEligible(from) {
			return nil, from, fault.New(fault.InvalidState, "cannot start a pickup while the student is %s", from)
		}
		updated, err := s.students.CompareAndSetStatus(ctx, st.ID, from, status.ParentEnRoute)
		if err == nil {
			return updated, from, nil
		}
		if !errors.Is(err, studentstore.ErrStatusChanged) {
			return nil, from, fault.Wrap(fault.Unavailable, err, "persisting status")
		}
		if attempt == 1 {
			return nil, from, fault.Wrap(fault.Unavailable, err, "student %s contended twice", st.ID.Hex())
		}
		fresh, rerr := s.students.GetByID(ctx, st.ID)
		if errors.Is(rerr, mongo.ErrNoDocuments) {
			return nil, from, fault.New(fault.NotFound, "student %s not found", st.ID.Hex())
		}
		if rerr != nil {
			return nil, from, fault.Wrap(fault.Unavailable, rerr, "re-reading student after contended update")
		}
		from = fresh.Status
	}
}

// ReportETA relays a guardian's estimated arrival to the pickup's room.
// It is pure broadcast: nothing is persisted and offline watchers miss it.
func (s *Service) ReportETA(ctx context.Context, pickupID, guardianID primitive.ObjectID, etaMinutes int) error {
	ev, err := s.pickups.GetByID(ctx, pickupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fault.New(fault.NotFound, "pickup %s not found", pickupID.Hex())
	}
	if err != nil {
		return fault.Wrap(fault.Unavailable, err, "loading pickup")
	}
	if ev.Status != models.PickupActive {
		return fault.New(fault.InvalidState, "pickup %s is %s", pickupID.Hex(), ev.Status)
	}

	bound, err := s.links.Exists(ctx, ev.StudentID, guardianID)
	if err != nil {
		return fault.Wrap(fault.Unavailable, err, "checking guardian link")
	}
	if !bound {
		return fault.New(fault.Unauthorized, "guardian is not linked to this student")
	}

	s.reg.BroadcastToRoom(ctx, ev.Room(), registry.Message{
		Type: "eta",
		Payload: map[string]any{
			"pickup_id":   ev.ID.Hex(),
			"guardian_id": guardianID.Hex(),
			"eta_minutes": etaMinutes,
		},
	})
	return nil
}

// closePickups completes any open pickup events for the student and tells
// their rooms. Failures are logged; the status change already happened and
// must not be rolled back over bookkeeping.
func (s *Service) closePickups(ctx context.Context, studentID primitive.ObjectID) {
	ev, err := s.pickups.ActiveForStudent(ctx, studentID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		s.log.Warn("cannot load open pickup for completion",
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
		return
	}
	if cerr := s.pickups.CompleteOpenForStudent(ctx, studentID); cerr != nil {
		s.log.Warn("cannot complete open pickups",
			zap.String("student_id", studentID.Hex()),
			zap.Error(cerr))
		return
	}
	if ev != nil {
		s.reg.BroadcastToRoom(ctx, ev.Room(), registry.Message{
			Type: "pickup_completed",
			Payload: map[string]any{
				"pickup_id":  ev.ID.Hex(),
				"student_id": studentID.Hex(),
			},
		})
	}
}

// ResetAll returns every student to NOT_ARRIVED and cancels open pickup
// events, bypassing the transition table. Already-reset students are left
// untouched, so overlapping runs are harmless.
func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	cancelled, err := s.pickups.CancelAllOpen(ctx)
	if err != nil {
		return 0, fault.Wrap(fault.Unavailable, err, "cancelling open pickups")
	}
	reset, err := s.students.ResetAllStatuses(ctx)
	if err != nil {
		return 0, fault.Wrap(fault.Unavailable, err, "resetting statuses")
	}
	s.log.Info("daily status reset",
		zap.Int64("students_reset", reset),
		zap.Int64("pickups_cancelled", cancelled))
	return reset, nil
}
