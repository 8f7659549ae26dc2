package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// PopupController exposes popup thread state.
type PopupController struct {
	eng *services.Engine
}

// NewPopupController creates a new PopupController instance.
func NewPopupController(eng *services.Engine) *PopupController {
	return &PopupController{eng: eng}
}

// Status reports whether :id is closed and what remains.
func (p *PopupController) Status(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	st, err := p.eng.GetPopupStatus(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

// Close ends the popup thread manually. Closing twice is a no-op.
func (p *PopupController) Close(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	st, err := p.eng.ClosePopup(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}

// Enable attaches popup limits to an existing root item.
func (p *PopupController) Enable(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req services.PopupConfig
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	st, err := p.eng.EnablePopup(ctx.Request.Context(), actor, id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, st)
}
