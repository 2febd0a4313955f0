package handler

import "github.com/opway/opway/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type updateProfileRequest struct {
	Name    string `json:"name"    validate:"omitempty,max=100"`
	Phone   string `json:"phone"   validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=200"`
	City    string `json:"city"    validate:"omitempty,max=100"`
	Country string `json:"country" validate:"omitempty,max=100"`
	Bio     string `json:"bio"     validate:"omitempty,max=1000"`
	Avatar  string `json:"avatar"  validate:"omitempty,max=2048"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

type listUsersResponse struct {
	Data       []*domain.User     `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}
