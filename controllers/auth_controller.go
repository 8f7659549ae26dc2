package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/config"
	"github.com/cppla/ephembbs/middleware"
	"github.com/cppla/ephembbs/models"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// AuthController handles local registration, login and identity endpoints.
type AuthController struct {
	db  *gorm.DB
	eng *services.Engine
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(db *gorm.DB, eng *services.Engine) *AuthController {
	return &AuthController{db: db, eng: eng}
}

func tokenTTL() time.Duration {
	h := config.Get().TokenTTLHours
	if h <= 0 {
		h = 24
	}
	return time.Duration(h) * time.Hour
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if l := len(req.Username); l < 3 || l > 20 || !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-20 characters of letters, digits, '-' or '_'")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 72 || !validPassword(req.Password) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "password must be 6-72 printable characters")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{Username: req.Username, PasswordHash: hash, Role: models.RoleUser}
	if isAdminUsername(user.Username) {
		user.Role = models.RoleAdmin
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, tokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

func validUsername(s string) bool {
	for _, r := range s {
		if r == '-' || r == '_' {
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return false
	}
	return true
}

func validPassword(s string) bool {
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// Login verifies user credentials and issues a JWT. Banned identities are
// rejected before a token is issued.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if err := a.eng.CheckBanned(ctx.Request.Context(), user.ID); err != nil {
		respondError(ctx, err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, tokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(tokenTTL())
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current user with the active mute, if any.
func (a *AuthController) Me(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var user models.User
	if err := a.db.First(&user, actor.UserID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	mute, err := a.eng.IsMuted(ctx.Request.Context(), actor.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := userResponse(user)
	resp["mute"] = mute
	utils.Success(ctx, resp)
}

// GetUserPublicByUsername returns the public profile of a user.
func (a *AuthController) GetUserPublicByUsername(ctx *gin.Context) {
	var user models.User
	err := a.db.Where("username = ?", strings.TrimSpace(ctx.Param("username"))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}
	utils.Success(ctx, userResponse(user))
}

// UpdateRole lets an admin change another user's role.
func (a *AuthController) UpdateRole(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}
	user, err := a.eng.UpdateRole(ctx.Request.Context(), actor, id, strings.TrimSpace(req.Role))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, userResponse(*user))
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	}
}

// isAdminUsername checks whether given username is configured as an admin (case-insensitive)
func isAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}
