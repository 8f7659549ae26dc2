package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// NotificationController lists and acknowledges notifications.
type NotificationController struct {
	eng *services.Engine
}

// NewNotificationController creates a new NotificationController instance.
func NewNotificationController(eng *services.Engine) *NotificationController {
	return &NotificationController{eng: eng}
}

// List returns the caller's notifications; ?unread=true narrows to unread ones.
func (n *NotificationController) List(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	items, total, err := n.eng.ListNotifications(ctx.Request.Context(), actor, page, pageSize, ctx.Query("unread") == "true")
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"items":      items,
		"pagination": pagination(page, pageSize, total),
	})
}

// UnreadCount returns the number of unread notifications.
func (n *NotificationController) UnreadCount(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	c, err := n.eng.UnreadCount(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"unread": c})
}

// MarkRead marks notification :id read.
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := n.eng.MarkRead(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id})
}

// MarkAllRead marks every notification of the caller read.
func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	updated, err := n.eng.MarkAllRead(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"updated": updated})
}
