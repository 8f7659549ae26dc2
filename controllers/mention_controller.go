package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/models"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// MentionController drives the mention consent workflow.
type MentionController struct {
	eng *services.Engine
}

// NewMentionController creates a new MentionController instance.
func NewMentionController(eng *services.Engine) *MentionController {
	return &MentionController{eng: eng}
}

// Create asks a user to consent to a mention on :id.
func (m *MentionController) Create(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	mention, err := m.eng.CreateMention(ctx.Request.Context(), actor, id, req.Username)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, mention)
}

// Respond accepts or declines mention :id. Only the mentioned user may answer.
func (m *MentionController) Respond(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	mention, err := m.eng.RespondToMention(ctx.Request.Context(), actor, id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, mention)
}

// List returns the caller's mentions, optionally filtered by ?status=.
func (m *MentionController) List(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	status := strings.ToLower(strings.TrimSpace(ctx.Query("status")))
	switch status {
	case "", models.MentionPending, models.MentionAccepted, models.MentionDeclined:
	default:
		utils.Error(ctx, http.StatusBadRequest, 40051, "unknown status")
		return
	}
	items, err := m.eng.ListMentions(ctx.Request.Context(), actor, status)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Render returns the body of :id split into text and accepted-mention segments.
func (m *MentionController) Render(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	segs, err := m.eng.RenderContent(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"content_id": id, "segments": segs})
}
