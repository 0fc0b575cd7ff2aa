package jwt

import (
	"encoding/json"
	"net/http"

	"ride-tracker/internal/domain/user"
)

// Authenticate is the HTTP counterpart of ValidateWSAuth: it reads the bearer token of r,
// validates it and checks the role. The returned status is the one to answer with when
// err is non-nil: 401 for a missing or bad token, 403 for a role outside allowed.
func Authenticate(mgr *Manager, r *http.Request, allowed ...user.Role) (*Claims, int, error) {
	raw, err := FromAuthorization(r)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	_, claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	if err := RoleAllowed(claims, allowed...); err != nil {
		return claims, http.StatusForbidden, err
	}
	return claims, http.StatusOK, nil
}

// AuthMiddlewareFunc gates a route to allowedRoles (any role when empty). Rejections get
// the same {"error": ...} body as the tracking API; accepted requests carry the claims.
func AuthMiddlewareFunc(mgr *Manager, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, status, err := Authenticate(mgr, r, allowedRoles...)
			if err != nil {
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="ride-tracker"`)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next(w, r.WithContext(InjectClaims(r.Context(), claims)))
		}
	}
}

// RequireClaims returns the claims AuthMiddlewareFunc attached; nil on an ungated route.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}
