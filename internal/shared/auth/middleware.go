package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/carecircle/guardrail/internal/safety"
	"github.com/carecircle/guardrail/internal/shared/config"
	"github.com/carecircle/guardrail/internal/shared/types"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// Roles granted by the identity provider
const (
	RoleSafetyAuditor = "safety_auditor"
	RoleAdmin         = "admin"
)

// User is the authenticated caller taken from JWT claims
type User struct {
	ID        types.ID    `json:"sub"`
	Role      safety.Role `json:"user_role"`
	SessionID types.ID    `json:"session_id"`
	Roles     []string    `json:"roles"`
}

// Claims extends JWT claims with the care circle data the pipeline needs
type Claims struct {
	jwt.RegisteredClaims
	UserRole  string   `json:"user_role"`
	SessionID string   `json:"session_id,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Middleware creates JWT authentication middleware. Tokens must be HMAC
// signed with cfg.JWTSecret and carry a valid user_role.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	var opts []jwt.ParserOption
	opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
				return []byte(cfg.JWTSecret), nil
			}, opts...)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			user, err := userFromClaims(claims)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFromClaims(claims *Claims) (*User, error) {
	user := &User{
		ID:        types.ID(claims.Subject),
		SessionID: types.ID(claims.SessionID),
		Roles:     claims.Roles,
	}

	// Auditors reading the audit trail need not be care circle members
	if claims.UserRole == "" && user.IsAuditor() {
		return user, nil
	}

	role, err := safety.ParseRole(claims.UserRole)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// WithUser stores user in ctx
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUser extracts the user from request context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// RequireRoles creates middleware that requires one of roles
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !slices.ContainsFunc(roles, user.HasRole) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HasRole checks if user has a specific role
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsAuditor reports whether the user may read the safety audit trail
func (u *User) IsAuditor() bool {
	return u.HasRole(RoleSafetyAuditor) || u.HasRole(RoleAdmin)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
