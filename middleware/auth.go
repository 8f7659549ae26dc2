package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the current role inside Gin context.
	ContextRoleKey = "role"
	// ContextTokenKey stores the raw bearer token, used by logout.
	ContextTokenKey = "token"
)

// Authenticator turns a verified token subject into the current identity.
type Authenticator interface {
	Authenticate(ctx context.Context, userID uint) (services.Actor, error)
}

// AuthRequired ensures the request is authenticated via JWT and the
// identity still exists and is not banned.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, ok := bearerToken(ctx)
		if !ok {
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		actor, err := auth.Authenticate(ctx.Request.Context(), claims.UserID)
		if err != nil {
			var be *services.BannedError
			switch {
			case errors.As(err, &be):
				AbortBanned(ctx, be)
			case errors.Is(err, services.ErrUnauthorized):
				utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
				ctx.Abort()
			default:
				utils.Sugar.Errorf("authenticate user %d: %v", claims.UserID, err)
				utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to verify identity")
				ctx.Abort()
			}
			return
		}

		ctx.Set(ContextUserIDKey, actor.UserID)
		ctx.Set(ContextUsernameKey, actor.Username)
		ctx.Set(ContextRoleKey, actor.Role)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}

// OptionalAuth sets the identity when a valid token is presented and
// otherwise lets the request through anonymously.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			ctx.Next()
			return
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" || utils.IsTokenBlacklisted(tokenString) {
			ctx.Next()
			return
		}
		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			ctx.Next()
			return
		}
		if actor, err := auth.Authenticate(ctx.Request.Context(), claims.UserID); err == nil {
			ctx.Set(ContextUserIDKey, actor.UserID)
			ctx.Set(ContextUsernameKey, actor.Username)
			ctx.Set(ContextRoleKey, actor.Role)
		}
		ctx.Next()
	}
}

// RequireRole rejects callers whose role is not listed. Must run after AuthRequired.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := ctx.GetString(ContextRoleKey)
		for _, r := range roles {
			if r == role {
				ctx.Next()
				return
			}
		}
		utils.Error(ctx, http.StatusForbidden, 40300, "forbidden")
		ctx.Abort()
	}
}

// AbortBanned writes the ban details so the blocked user sees why.
func AbortBanned(ctx *gin.Context, be *services.BannedError) {
	utils.Respond(ctx, http.StatusForbidden, 40301, "user is banned", gin.H{
		"reason":    be.Reason,
		"banned_at": be.BannedAt,
		"banned_by": be.BannedBy,
	})
	ctx.Abort()
}

func bearerToken(ctx *gin.Context) (string, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
		ctx.Abort()
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
		ctx.Abort()
		return "", false
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
		ctx.Abort()
		return "", false
	}
	return tokenString, true
}
