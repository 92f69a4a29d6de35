package testutil

import (
	"net/http"
	"net/http/httptest"

	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminPrincipal returns a signed-in admin for the given institution.
func AdminPrincipal(institutionID primitive.ObjectID) auth.Principal {
	return auth.Principal{
		ID:            primitive.NewObjectID().Hex(),
		Name:          "Test Admin",
		Role:          models.RoleAdmin,
		InstitutionID: institutionID.Hex(),
	}
}

// TeacherPrincipal returns a signed-in teacher for the given institution.
func TeacherPrincipal(institutionID primitive.ObjectID) auth.Principal {
	return auth.Principal{
		ID:            primitive.NewObjectID().Hex(),
		Name:          "Test Teacher",
		Role:          models.RoleTeacher,
		InstitutionID: institutionID.Hex(),
	}
}

// GuardianPrincipal returns a signed-in guardian matching the given user.
func GuardianPrincipal(u models.User) auth.Principal {
	p := auth.Principal{
		ID:   u.ID.Hex(),
		Name: u.FullName,
		Role: models.RoleParent,
	}
	if u.InstitutionID != nil {
		p.InstitutionID = u.InstitutionID.Hex()
	}
	return p
}

// WithPrincipal adds a principal to the request context, bypassing the
// token middleware.
func WithPrincipal(r *http.Request, p auth.Principal) *http.Request {
	return auth.WithPrincipal(r, &p)
}

// NewAuthenticatedRequest creates an HTTP request with a principal in context.
func NewAuthenticatedRequest(method, target string, p auth.Principal) *http.Request {
	return WithPrincipal(httptest.NewRequest(method, target, nil), p)
}
