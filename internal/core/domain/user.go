package domain

import (
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	// RoleNone is the zero value. On a route it means "any authenticated user".
	RoleNone     Role = ""
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole converts s into a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}

// Satisfies reports whether a holder of r may access something that requires
// the given role. Admins satisfy every requirement.
func (r Role) Satisfies(required Role) bool {
	if !r.Valid() {
		return false
	}
	switch required {
	case RoleNone, RoleCustomer:
		return true
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Profile holds the optional, independently mutable user details.
type Profile struct {
	Phone   string `json:"phone,omitempty"   bson:"phone,omitempty"`
	Address string `json:"address,omitempty" bson:"address,omitempty"`
	City    string `json:"city,omitempty"    bson:"city,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
	Bio     string `json:"bio,omitempty"     bson:"bio,omitempty"`
	Avatar  string `json:"avatar,omitempty"  bson:"avatar,omitempty"`
}

// ProfileUpdate is a partial profile. Empty fields are treated as absent.
type ProfileUpdate struct {
	Name string `json:"name,omitempty" bson:"name,omitempty"`
	Profile
}

// IsEmpty reports whether the update carries no field at all.
func (u ProfileUpdate) IsEmpty() bool {
	return u == ProfileUpdate{}
}

// Merge shallow-merges u into name and profile: every non-empty field of u
// overwrites its target, everything else is preserved.
func (u ProfileUpdate) Merge(name *string, profile *Profile) error {
	dst := ProfileUpdate{Name: *name, Profile: *profile}
	if err := mergo.Merge(&dst, u, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge profile: %w", err)
	}
	*name = dst.Name
	*profile = dst.Profile
	return nil
}

// User models an account stored by the backend.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Profile
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyProfile merges upd into the user. Identity fields (id, email, role)
// are never touched.
func (u *User) ApplyProfile(upd ProfileUpdate) error {
	return upd.Merge(&u.Name, &u.Profile)
}

// NormalizeEmail trims and lower-cases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
