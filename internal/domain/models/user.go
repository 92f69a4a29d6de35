// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold. Parents (guardians) act on their bound students;
// the other three are institution staff with increasing administrative reach.
const (
	RoleParent       = "parent"
	RoleTeacher      = "teacher"
	RoleReceptionist = "receptionist"
	RoleAdmin        = "admin"
)

// Account statuses.
//
//   - invited: pre-registered by staff, no credential yet; cannot authenticate.
//   - active: normal account.
//   - inactive: soft-removed by an admin; cannot authenticate.
const (
	AccountInvited  = "invited"
	AccountActive   = "active"
	AccountInactive = "inactive"
)

// IsStaffRole reports whether role is one of the institution staff roles.
func IsStaffRole(role string) bool {
	return role == RoleTeacher || role == RoleReceptionist || role == RoleAdmin
}

// User represents guardians and institution staff.
//
// NOTE:
//   - Guardian–student links are not embedded on User.
//     Use the guardian_links collection to discover a guardian's students.
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Phone          string              `bson:"phone" json:"phone"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	HashedPassword string              `bson:"hashed_password,omitempty" json:"-"`
	Role           string              `bson:"role" json:"role"`     // parent | teacher | receptionist | admin
	Status         string              `bson:"status" json:"status"` // invited | active | inactive
	InstitutionID  *primitive.ObjectID `bson:"institution_id,omitempty" json:"institution_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CanAuthenticate reports whether the account may log in at all.
func (u *User) CanAuthenticate() bool {
	return u.Status == AccountActive && u.HashedPassword != ""
}
