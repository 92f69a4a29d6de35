// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PrincipalCtx returns the principal's role (lowercased), name, Mongo
// ObjectID, and a found flag. If no principal is present in context or the
// principal ID is malformed, it returns "visitor", "", NilObjectID, false —
// so ok=true always means a valid, authenticated principal with a valid
// ObjectID.
func PrincipalCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	p, ok := auth.CurrentPrincipal(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		// Malformed principal ID in token - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(p.Role), p.Name, userID, true
}

// IsStaff reports whether the current request's principal is institution
// staff (teacher, receptionist, or admin).
func IsStaff(r *http.Request) bool {
	role, _, _, ok := PrincipalCtx(r)
	return ok && (role == "teacher" || role == "receptionist" || role == "admin")
}

// IsAdmin reports whether the current request's principal is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := PrincipalCtx(r)
	return ok && role == "admin"
}

// IsGuardian reports whether the current request's principal is a parent.
func IsGuardian(r *http.Request) bool {
	role, _, _, ok := PrincipalCtx(r)
	return ok && role == "parent"
}

// InstitutionID returns the principal's institution as an ObjectID.
// Returns NilObjectID if not signed in or not affiliated yet.
func InstitutionID(r *http.Request) primitive.ObjectID {
	p, ok := auth.CurrentPrincipal(r)
	if !ok || p.InstitutionID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(p.InstitutionID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}
