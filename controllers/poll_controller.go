package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// PollController exposes poll results and voting.
type PollController struct {
	eng *services.Engine
}

// NewPollController creates a new PollController instance.
func NewPollController(eng *services.Engine) *PollController {
	return &PollController{eng: eng}
}

// Get returns poll :id with live tallies.
func (p *PollController) Get(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	view, err := p.eng.GetPoll(ctx.Request.Context(), actorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}

// Vote records or replaces the caller's choice on poll :id.
func (p *PollController) Vote(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		OptionIndex *int `json:"option_index" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}
	view, err := p.eng.Vote(ctx.Request.Context(), actor, id, *req.OptionIndex)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, view)
}
