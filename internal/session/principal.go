package session

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/opway/opway/internal/core/domain"
)

// Principal is the authenticated user as the client sees it.
type Principal struct {
	ID    string      `json:"id"    validate:"required"`
	Name  string      `json:"name"`
	Email string      `json:"email" validate:"required"`
	Role  domain.Role `json:"role"`
	domain.Profile
}

// PrincipalFromUser copies the public fields of a backend user.
func PrincipalFromUser(u *domain.User) Principal {
	return Principal{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Profile: u.Profile,
	}
}

// Validate reports whether p can be held by an authenticated session.
func (p Principal) Validate(v *validator.Validate) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return nil
}

// Merge returns a copy of p with upd applied. Identity fields are preserved.
func (p Principal) Merge(upd domain.ProfileUpdate) (Principal, error) {
	if err := upd.Merge(&p.Name, &p.Profile); err != nil {
		return Principal{}, err
	}
	return p, nil
}
