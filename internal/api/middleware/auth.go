package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/api/metrics"
	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/core/ports"
)

// Context keys set by Auth.
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// Auth validates the bearer JWT, rejects revoked tokens and injects the
// verified claims into the context. When accounts is set the role and email
// are taken from the stored account rather than the token, and tokens of
// deleted accounts are rejected. revoker and accounts may be nil.
func Auth(jwtSecret string, revoker ports.TokenRevoker, accounts ports.AccountLookup, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			}, jwt.WithExpirationRequired())
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			tc, ok := toTokenClaims(claims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			if revoker != nil && tc.TokenID != "" {
				revoked, err := revoker.IsRevoked(c.Request().Context(), tc.TokenID)
				if err != nil {
					log.Error().Err(err).Str("user_id", tc.UserID).Msg("revocation check failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
				}
				if revoked {
					metrics.RevokedTokenRejectionsTotal.Inc()
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}

			if accounts != nil {
				user, err := accounts.Me(c.Request().Context(), tc.UserID)
				switch {
				case errors.Is(err, domain.ErrUserNotFound):
					return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
				case err != nil:
					log.Error().Err(err).Str("user_id", tc.UserID).Msg("account lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication temporarily unavailable")
				}
				if user.Role != tc.Role {
					log.Debug().Str("user_id", tc.UserID).Str("token_role", string(tc.Role)).
						Str("role", string(user.Role)).Msg("role changed since token was issued")
				}
				tc.Role = user.Role
				tc.Email = user.Email
			}

			c.Set(ClaimsKey, tc)
			c.Set(UserIDKey, tc.UserID)
			c.Set(RoleKey, string(tc.Role))

			return next(c)
		}
	}
}

func toTokenClaims(claims jwt.MapClaims) (ports.TokenClaims, bool) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return ports.TokenClaims{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return ports.TokenClaims{}, false
	}
	roleStr, _ := claims["role"].(string)
	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return ports.TokenClaims{}, false
	}
	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)

	return ports.TokenClaims{
		UserID:    sub,
		Email:     email,
		Role:      role,
		TokenID:   jti,
		ExpiresAt: exp.Time,
	}, true
}
