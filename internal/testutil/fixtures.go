package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/pickuphub/internal/domain/models"
	"github.com/dalemusser/pickuphub/internal/domain/status"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateInstitution creates a test institution with the given name and
// join code.
func (f *Fixtures) CreateInstitution(ctx context.Context, name, code string) models.Institution {
	f.t.Helper()

	now := time.Now().UTC()
	inst := models.Institution{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Code:      code,
		TimeZone:  "America/New_York",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("institutions").InsertOne(ctx, inst); err != nil {
		f.t.Fatalf("failed to create test institution: %v", err)
	}
	return inst
}

// CreateClass creates a test class in the given institution.
func (f *Fixtures) CreateClass(ctx context.Context, institutionID primitive.ObjectID, name string) models.Class {
	f.t.Helper()

	now := time.Now().UTC()
	cls := models.Class{
		ID:            primitive.NewObjectID(),
		InstitutionID: institutionID,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("classes").InsertOne(ctx, cls); err != nil {
		f.t.Fatalf("failed to create test class: %v", err)
	}
	return cls
}

// CreateStudent creates a test student in the given class and institution,
// starting at NOT_ARRIVED.
func (f *Fixtures) CreateStudent(ctx context.Context, classID, institutionID primitive.ObjectID, fullName string) models.Student {
	return f.CreateStudentWithStatus(ctx, classID, institutionID, fullName, status.NotArrived)
}

// CreateStudentWithStatus creates a test student already holding st.
func (f *Fixtures) CreateStudentWithStatus(ctx context.Context, classID, institutionID primitive.ObjectID, fullName string, st status.Status) models.Student {
	f.t.Helper()

	now := time.Now().UTC()
	student := models.Student{
		ID:            primitive.NewObjectID(),
		ClassID:       classID,
		InstitutionID: institutionID,
		FullName:      fullName,
		FullNameCI:    text.Fold(fullName),
		Status:        st,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("students").InsertOne(ctx, student); err != nil {
		f.t.Fatalf("failed to create test student: %v", err)
	}
	return student
}

// CreateStaff creates an active staff user in the given institution.
func (f *Fixtures) CreateStaff(ctx context.Context, institutionID primitive.ObjectID, fullName, phone, role string) models.User {
	f.t.Helper()
	return f.createUser(ctx, &institutionID, fullName, phone, role, models.AccountActive)
}

// CreateGuardian creates a guardian user with the given account status.
// Invited guardians have no institution and no credential.
func (f *Fixtures) CreateGuardian(ctx context.Context, fullName, phone, accountStatus string) models.User {
	f.t.Helper()
	return f.createUser(ctx, nil, fullName, phone, models.RoleParent, accountStatus)
}

func (f *Fixtures) createUser(ctx context.Context, institutionID *primitive.ObjectID, fullName, phone, role, accountStatus string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:            primitive.NewObjectID(),
		Phone:         phone,
		FullName:      fullName,
		FullNameCI:    text.Fold(fullName),
		Role:          role,
		Status:        accountStatus,
		InstitutionID: institutionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if accountStatus == models.AccountActive {
		// Not a real bcrypt hash; only CanAuthenticate paths look at it.
		u.HashedPassword = "x"
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateLink binds a guardian to a student.
func (f *Fixtures) CreateLink(ctx context.Context, student models.Student, guardianID primitive.ObjectID) models.GuardianLink {
	f.t.Helper()

	link := models.GuardianLink{
		ID:            primitive.NewObjectID(),
		StudentID:     student.ID,
		GuardianID:    guardianID,
		InstitutionID: student.InstitutionID,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := f.db.Collection("guardian_links").InsertOne(ctx, link); err != nil {
		f.t.Fatalf("failed to create test guardian link: %v", err)
	}
	return link
}
