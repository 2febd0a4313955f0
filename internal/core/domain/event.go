package domain

import "time"

// AuthEventKind names an entry in the authentication audit trail.
type AuthEventKind string

const (
	EventRegister       AuthEventKind = "register"
	EventLogin          AuthEventKind = "login"
	EventLoginFailed    AuthEventKind = "login_failed"
	EventLogout         AuthEventKind = "logout"
	EventProfileUpdated AuthEventKind = "profile_updated"
	EventRoleChanged    AuthEventKind = "role_changed"
	EventUserDeleted    AuthEventKind = "user_deleted"
)

// AuthEvent records something that happened to an account.
type AuthEvent struct {
	Kind   AuthEventKind
	UserID string // empty for failed logins of unknown emails
	Email  string
	Actor  string // user id of whoever triggered it, when different from UserID
	Detail string
	At     time.Time
}
