// internal/app/core/binding/binding.go

// Package binding is the authority on guardian–student links: who may bind
// to a child, the two-active-guardians cap, and guardian account
// activation, which is a specialization of the same proof.
package binding

import (
	"context"
	"errors"

	institutionstore "github.com/dalemusser/pickuphub/internal/app/store/institutions"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/normalize"
	"github.com/dalemusser/pickuphub/internal/app/system/passwd"
	"github.com/dalemusser/pickuphub/internal/app/system/txn"
	"github.com/dalemusser/pickuphub/internal/domain/fault"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxActiveGuardians is the cap on active guardian accounts bound to one
// student. Staff may pre-register more, but only this many may ever
// activate.
const MaxActiveGuardians = 2

// Guardian is the aggregate returned by binding operations: the account
// plus every student it is bound to, loaded explicitly in one call.
type Guardian struct {
	User     models.User      `json:"user"`
	Students []models.Student `json:"students"`
}

type Service struct {
	client       *mongo.Client
	institutions *institutionstore.Store
	users        *userstore.Store
	students     *studentstore.Store
	links        *linkstore.Store
	log          *zap.Logger
}

func NewService(client *mongo.Client, institutions *institutionstore.Store, users *userstore.Store, students *studentstore.Store, links *linkstore.Store, log *zap.Logger) *Service {
	return &Service{
		client:       client,
		institutions: institutions,
		users:        users,
		students:     students,
		links:        links,
		log:          log,
	}
}

// resolveStudent finds the student named by an institution code plus an
// exact full name. Both misses collapse to NotFound so a caller probing
// codes cannot distinguish a wrong code from a wrong name.
func (s *Service) resolveStudent(ctx context.Context, institutionCode, studentFullName string) (*models.Student, error) {
	inst, err := s.institutions.GetByCode(ctx, institutionCode)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "no student matches that institution code and name")
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading institution")
	}
	st, err := s.students.GetByNameAndInstitution(ctx, studentFullName, inst.ID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "no student matches that institution code and name")
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading student")
	}
	return st, nil
}

// linkedGuardians loads the accounts of every guardian pre-registered for
// the student, in any account status.
func (s *Service) linkedGuardians(ctx context.Context, studentID primitive.ObjectID) ([]models.User, error) {
	ids, err := s.links.GuardianIDsForStudent(ctx, studentID)
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian links")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	guardians, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian accounts")
	}
	return guardians, nil
}

// phoneProof reports whether claimedPhone belongs to any guardian
// pre-registered for the student. This is the ownership proof: staff named
// that phone when they registered the child.
func phoneProof(guardians []models.User, claimedPhone string) bool {
	phone := normalize.Phone(claimedPhone)
	for _, g := range guardians {
		if g.Phone == phone {
			return true
		}
	}
	return false
}

func countActive(guardians []models.User) int {
	n := 0
	for _, g := range guardians {
		if g.Status == models.AccountActive {
			n++
		}
	}
	return n
}

// Bind links guardianID to the student named by institutionCode and
// studentFullName. Binding an already-bound guardian succeeds without a
// duplicate. The active-guardian count and the insert run inside one
// transaction that also increments the student's binding revision, so two
// concurrent binds write-conflict on the student document and one of them
// aborts instead of both slipping under the cap.
func (s *Service) Bind(ctx context.Context, guardianID primitive.ObjectID, institutionCode, studentFullName, claimedPhone string) (*Guardian, error) {
	requester, err := s.users.GetByID(ctx, guardianID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "guardian account not found")
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian")
	}
	if requester.Role != models.RoleParent {
		return nil, fault.New(fault.Unauthorized, "only guardians can bind to a student")
	}

	st, err := s.resolveStudent(ctx, institutionCode, studentFullName)
	if err != nil {
		return nil, err
	}

	terr := txn.WithTransaction(ctx, s.client, func(ctx context.Context) error {
		if rerr := s.students.TouchBindings(ctx, st.ID); rerr != nil {
			if errors.Is(rerr, mongo.ErrNoDocuments) {
				return fault.New(fault.NotFound, "no student matches that institution code and name")
			}
			return fault.Wrap(fault.Unavailable, rerr, "claiming binding revision")
		}
		guardians, gerr := s.linkedGuardians(ctx, st.ID)
		if gerr != nil {
			return gerr
		}
		if !phoneProof(guardians, claimedPhone) {
			return fault.New(fault.Unauthorized, "phone does not match any registered guardian for this student")
		}
		for _, g := range guardians {
			if g.ID == guardianID {
				return nil // already bound; idempotent success
			}
		}
		if countActive(guardians) >= MaxActiveGuardians {
			return fault.New(fault.CapReached, "student already has %d active guardians", MaxActiveGuardians)
		}
		_, aerr := s.links.Add(ctx, models.GuardianLink{
			StudentID:     st.ID,
			GuardianID:    guardianID,
			InstitutionID: st.InstitutionID,
		})
		if errors.Is(aerr, linkstore.ErrDuplicateLink) {
			return nil
		}
		if aerr != nil {
			return fault.Wrap(fault.Unavailable, aerr, "creating guardian link")
		}
		return nil
	})
	if terr != nil {
		if fault.KindOf(terr) != 0 {
			return nil, terr
		}
		return nil, fault.Wrap(fault.Unavailable, terr, "binding transaction")
	}

	s.log.Info("guardian bound",
		zap.String("guardian_id", guardianID.Hex()),
		zap.String("student_id", st.ID.Hex()))
	return s.GuardianChildren(ctx, guardianID)
}

// Unbind removes the link between a student and a guardian. Staff use it to
// revoke access; a guardian may also unbind themself. The student's status
// is never touched.
func (s *Service) Unbind(ctx context.Context, studentID, guardianID primitive.ObjectID) error {
	err := s.links.Remove(ctx, studentID, guardianID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fault.New(fault.NotFound, "guardian is not linked to this student")
	}
	if err != nil {
		return fault.Wrap(fault.Unavailable, err, "removing guardian link")
	}
	s.log.Info("guardian unbound",
		zap.String("guardian_id", guardianID.Hex()),
		zap.String("student_id", studentID.Hex()))
	return nil
}

// Activate upgrades an invited guardian account to active and sets its
// credential. The proof mirrors Bind: a staff-created link must already
// exist between this phone's account and the named student. The
// active-guardian cap is re-checked here, since activation is the moment a
// pre-registered guardian starts counting against it.
func (s *Service) Activate(ctx context.Context, phone, password, institutionCode, studentFullName string) (*Guardian, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "no guardian account for that phone")
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian")
	}
	if u.Role != models.RoleParent {
		return nil, fault.New(fault.Unauthorized, "only guardian accounts can be activated this way")
	}
	switch u.Status {
	case models.AccountActive:
		return nil, fault.New(fault.Conflict, "account is already active")
	case models.AccountInactive:
		return nil, fault.New(fault.Unauthorized, "account has been deactivated")
	}

	st, err := s.resolveStudent(ctx, institutionCode, studentFullName)
	if err != nil {
		return nil, err
	}

	bound, err := s.links.Exists(ctx, st.ID, u.ID)
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "checking guardian link")
	}
	if !bound {
		return nil, fault.New(fault.NotFound, "no registration matches that phone, code, and student")
	}

	hash, err := passwd.Hash(password)
	if err != nil {
		if errors.Is(err, passwd.ErrTooShort) {
			return nil, fault.New(fault.InvalidState, "password must be at least %d characters", passwd.MinLength)
		}
		return nil, fault.Wrap(fault.Unavailable, err, "hashing credential")
	}

	terr := txn.WithTransaction(ctx, s.client, func(ctx context.Context) error {
		if rerr := s.students.TouchBindings(ctx, st.ID); rerr != nil {
			if errors.Is(rerr, mongo.ErrNoDocuments) {
				return fault.New(fault.NotFound, "no student matches that institution code and name")
			}
			return fault.Wrap(fault.Unavailable, rerr, "claiming binding revision")
		}
		guardians, gerr := s.linkedGuardians(ctx, st.ID)
		if gerr != nil {
			return gerr
		}
		if countActive(guardians) >= MaxActiveGuardians {
			return fault.New(fault.CapReached, "student already has %d active guardians", MaxActiveGuardians)
		}
		if _, aerr := s.users.Activate(ctx, u.ID, hash, st.InstitutionID); aerr != nil {
			if errors.Is(aerr, mongo.ErrNoDocuments) {
				// Lost a race with another activation of the same account.
				return fault.New(fault.Conflict, "account is already active")
			}
			return fault.Wrap(fault.Unavailable, aerr, "activating account")
		}
		return nil
	})
	if terr != nil {
		if fault.KindOf(terr) != 0 {
			return nil, terr
		}
		return nil, fault.Wrap(fault.Unavailable, terr, "activation transaction")
	}

	s.log.Info("guardian activated",
		zap.String("guardian_id", u.ID.Hex()),
		zap.String("institution_id", st.InstitutionID.Hex()))
	return s.GuardianChildren(ctx, u.ID)
}

// GuardianChildren loads the guardian aggregate: the account and every
// bound student, fully populated. Soft-deleted students are omitted.
func (s *Service) GuardianChildren(ctx context.Context, guardianID primitive.ObjectID) (*Guardian, error) {
	u, err := s.users.GetByID(ctx, guardianID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fault.New(fault.NotFound, "guardian account not found")
	}
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian")
	}

	ids, err := s.links.StudentIDsForGuardian(ctx, guardianID)
	if err != nil {
		return nil, fault.Wrap(fault.Unavailable, err, "loading guardian links")
	}
	students := make([]models.Student, 0, len(ids))
	for _, id := range ids {
		st, serr := s.students.GetByID(ctx, id)
		if errors.Is(serr, mongo.ErrNoDocuments) {
			continue // soft-deleted
		}
		if serr != nil {
			return nil, fault.Wrap(fault.Unavailable, serr, "loading student")
		}
		students = append(students, *st)
	}
	return &Guardian{User: *u, Students: students}, nil
}
