package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

// Roles
const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleSiteManager    = "site_manager"
	RoleFinance        = "finance"
	RoleStaff          = "staff"
	RoleWorker         = "worker"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleSiteManager, RoleFinance, RoleStaff, RoleWorker:
		return true
	}
	return false
}

// IsManager: roles allowed to review attendance, leave and RAB items.
func IsManager(role string) bool {
	return role == RoleAdmin || role == RoleProjectManager || role == RoleSiteManager
}

// RequireAuth verifies "Authorization: Bearer <token>" and stores user_id/role in the context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "empty token")
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// HS256 only
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "invalid claims")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abort(c, http.StatusUnauthorized, "missing sub")
			return
		}
		uid, err := strconv.ParseInt(sub, 10, 64)
		if err != nil || uid <= 0 {
			abort(c, http.StatusUnauthorized, "invalid sub")
			return
		}

		role := ""
		if roleAny, ok := claims["role"]; ok {
			if roleStr, ok := roleAny.(string); ok {
				role = roleStr
			}
		}

		c.Set(CtxUserIDKey, uid)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole allows the request only when the authenticated role is in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			abort(c, http.StatusForbidden, "missing role")
			return
		}
		if _, allowed := roleSet[role]; !allowed {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or 0.
func UserID(c *gin.Context) int64 {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}

// Role returns the authenticated role, or "".
func Role(c *gin.Context) string {
	v, ok := c.Get(CtxRoleKey)
	if !ok {
		return ""
	}
	r, _ := v.(string)
	return r
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}
