package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/auth"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/gin-gonic/gin"
)

const (
	actorKey = "actor"

	// BranchHeader lets an admin pick the branch they act on.
	BranchHeader = "X-Branch-Id"
)

// AuthMiddleware checks if the user has a valid JWT token and turns the claims
// into the scope.Actor every service call takes.
func AuthMiddleware(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Format: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Authorization header must start with Bearer")
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token")
			return
		}

		actor := scope.Actor{UserID: claims.UserID, Role: claims.Role, BranchID: claims.BranchID}
		if actor.IsAdmin() {
			// Admins are not bound to a branch; the header narrows the view.
			actor.BranchID = nil
			if raw := strings.TrimSpace(c.GetHeader(BranchHeader)); raw != "" && raw != "all" {
				id, err := strconv.ParseUint(raw, 10, 64)
				if err != nil || id == 0 {
					abort(c, http.StatusBadRequest, string(apperrors.KindValidation), BranchHeader+" must be a branch id or \"all\"")
					return
				}
				branchID := uint(id)
				actor.BranchID = &branchID
			}
		}

		c.Set(actorKey, actor)
		c.Set("userID", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole is a secondary guard that checks for specific permissions
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentActor(c).Role
		for _, r := range allowed {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, string(apperrors.KindAuthorization), "You do not have permission to access this resource")
	}
}

// CurrentActor returns the caller set by AuthMiddleware. Outside an
// authenticated group it is the zero Actor, which no scope check accepts.
func CurrentActor(c *gin.Context) scope.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(scope.Actor); ok {
			return a
		}
	}
	return scope.Actor{}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
