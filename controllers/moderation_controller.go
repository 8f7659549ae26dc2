package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// ModerationController covers flags, quarantine and user restrictions.
type ModerationController struct {
	eng *services.Engine
}

// NewModerationController creates a new ModerationController instance.
func NewModerationController(eng *services.Engine) *ModerationController {
	return &ModerationController{eng: eng}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// FileFlag reports :id. Any authenticated user may flag; refiling updates the reason.
func (m *ModerationController) FileFlag(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	res, err := m.eng.FileFlag(ctx.Request.Context(), actor, id, utils.Sanitize(req.Reason))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// ListFlagged returns live items that carry at least one flag.
func (m *ModerationController) ListFlagged(ctx *gin.Context) {
	items, err := m.eng.ListFlaggedContent(ctx.Request.Context(), actorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// FlagSummary groups the flags on :id by reason.
func (m *ModerationController) FlagSummary(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	sum, err := m.eng.GetFlagSummary(ctx.Request.Context(), actorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, sum)
}

// ListFlags returns the individual flags on :id with their reporters.
func (m *ModerationController) ListFlags(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	items, err := m.eng.ListFlags(ctx.Request.Context(), actorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Quarantine hides :id from general listings.
func (m *ModerationController) Quarantine(ctx *gin.Context) {
	m.contentAction(ctx, m.eng.Quarantine, true)
}

// Unquarantine restores :id. Its flags are kept.
func (m *ModerationController) Unquarantine(ctx *gin.Context) {
	m.contentAction(ctx, m.eng.Unquarantine, false)
}

func (m *ModerationController) contentAction(ctx *gin.Context, apply func(context.Context, services.Actor, uint) error, quarantined bool) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := apply(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "quarantined": quarantined})
}

func (m *ModerationController) userAction(ctx *gin.Context, apply func(context.Context, services.Actor, uint) error) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := apply(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user_id": id})
}

type muteRequest struct {
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

// maxMuteMinutes caps a mute at one year.
const maxMuteMinutes = 365 * 24 * 60

// Mute blocks :id from posting for a while.
func (m *ModerationController) Mute(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req muteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > maxMuteMinutes {
		utils.Error(ctx, http.StatusBadRequest, 40031, "duration_minutes must be between 0 and 525600")
		return
	}
	mute, err := m.eng.Mute(ctx.Request.Context(), actor, id, utils.Sanitize(req.Reason), time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, mute)
}

// Unmute lifts a mute early.
func (m *ModerationController) Unmute(ctx *gin.Context) {
	m.userAction(ctx, m.eng.Unmute)
}

// Ban blocks :id from authenticating.
func (m *ModerationController) Ban(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid request payload")
		return
	}
	ban, err := m.eng.Ban(ctx.Request.Context(), actor, id, utils.Sanitize(req.Reason))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, ban)
}

// Unban revokes a ban.
func (m *ModerationController) Unban(ctx *gin.Context) {
	m.userAction(ctx, m.eng.Unban)
}

// ListBans returns every ban.
func (m *ModerationController) ListBans(ctx *gin.Context) {
	items, err := m.eng.ListBans(ctx.Request.Context(), actorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// ListMutes returns the mutes still in force.
func (m *ModerationController) ListMutes(ctx *gin.Context) {
	items, err := m.eng.ListMutes(ctx.Request.Context(), actorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Stats returns moderation totals.
func (m *ModerationController) Stats(ctx *gin.Context) {
	st, err := m.eng.Stats(ctx.Request.Context(), actorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}
