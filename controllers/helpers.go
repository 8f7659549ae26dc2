package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/middleware"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// Business codes returned inside the envelope for engine errors.
const (
	codeInvalidInput = 40010
	codeUnauthorized = 40110
	codeForbidden    = 40300
	codeBanned       = 40301
	codeMuted        = 40302
	codeNotFound     = 40401
	codeConflict     = 40900
	codeInvalidState = 40910
	codeInternal     = 50010
)

// respondError maps an engine error onto the uniform envelope. Forbidden and
// unauthorized carry a generic message; muted and banned carry the details.
func respondError(ctx *gin.Context, err error) {
	var me *services.MutedError
	if errors.As(err, &me) {
		utils.Respond(ctx, http.StatusForbidden, codeMuted, "user is muted", gin.H{
			"reason":     me.Reason,
			"expires_at": me.ExpiresAt,
			"muted_by":   me.MutedBy,
		})
		return
	}
	var be *services.BannedError
	if errors.As(err, &be) {
		middleware.AbortBanned(ctx, be)
		return
	}

	var se *services.Error
	hasCode := errors.As(err, &se)
	switch services.KindOf(err) {
	case services.KindUnauthorized:
		utils.Error(ctx, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
	case services.KindForbidden:
		utils.Error(ctx, http.StatusForbidden, codeForbidden, "forbidden")
	case services.KindNotFound:
		utils.Error(ctx, http.StatusNotFound, codeNotFound, err.Error())
	case services.KindInvalidInput:
		utils.Error(ctx, http.StatusBadRequest, codeInvalidInput, err.Error())
	case services.KindConflict:
		utils.Error(ctx, http.StatusConflict, codeConflict, err.Error())
	case services.KindInvalidState:
		data := gin.H{}
		if hasCode && se.Code != "" {
			data["reason"] = se.Code
		}
		utils.Respond(ctx, http.StatusConflict, codeInvalidState, err.Error(), data)
	default:
		utils.Sugar.Errorw("request failed", "path", ctx.FullPath(), "request_id", ctx.GetString(utils.RequestIDKey), "error", err)
		utils.Error(ctx, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	v, ok := value.(uint)
	return v, ok
}

// actorFrom returns the caller identity; anonymous readers get the zero Actor.
func actorFrom(ctx *gin.Context) services.Actor {
	uid, _ := getUserID(ctx)
	return services.Actor{
		UserID:   uid,
		Username: ctx.GetString(middleware.ContextUsernameKey),
		Role:     ctx.GetString(middleware.ContextRoleKey),
	}
}

// requireActor is for handlers mounted behind AuthRequired.
func requireActor(ctx *gin.Context) (services.Actor, bool) {
	a := actorFrom(ctx)
	if a.UserID == 0 {
		utils.Error(ctx, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
		return a, false
	}
	return a, true
}

func idParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, codeInvalidInput, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
