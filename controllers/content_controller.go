package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// ContentController exposes posting, reading and deleting ephemeral content.
type ContentController struct {
	eng *services.Engine
}

// NewContentController creates a new ContentController instance.
func NewContentController(eng *services.Engine) *ContentController {
	return &ContentController{eng: eng}
}

type createContentRequest struct {
	Body        string                `json:"body"`
	ParentID    *uint                 `json:"parent_id"`
	RepostOf    *uint                 `json:"repost_of"`
	TTLSeconds  int64                 `json:"ttl_seconds"`
	Popup       *services.PopupConfig `json:"popup"`
	PollOptions []string              `json:"poll_options"`
}

// CreateContent posts a root item, reply or repost.
func (c *ContentController) CreateContent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req createContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	opts := make([]string, len(req.PollOptions))
	for i, o := range req.PollOptions {
		opts[i] = utils.Sanitize(o)
	}
	if len(req.PollOptions) == 0 {
		opts = nil
	}

	item, err := c.eng.CreateContent(ctx.Request.Context(), actor, services.CreateContentInput{
		Body:        utils.Sanitize(req.Body),
		ParentID:    req.ParentID,
		RepostOf:    req.RepostOf,
		TTLSeconds:  req.TTLSeconds,
		Popup:       req.Popup,
		PollOptions: opts,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	view, err := c.eng.GetContent(ctx.Request.Context(), actor, item.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"content": view})
}

// CreateReply posts a reply to :id.
func (c *ContentController) CreateReply(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	parentID, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Body       string `json:"body"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	item, err := c.eng.CreateContent(ctx.Request.Context(), actor, services.CreateContentInput{
		Body:       utils.Sanitize(req.Body),
		ParentID:   &parentID,
		TTLSeconds: req.TTLSeconds,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"content": item})
}

// Repost shares :id under the caller's name.
func (c *ContentController) Repost(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	item, err := c.eng.Repost(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"content": item})
}

// GetContent returns a single live item.
func (c *ContentController) GetContent(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	view, err := c.eng.GetContent(ctx.Request.Context(), actorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"content": view})
}

// ListFeed returns live root items, pinned first.
func (c *ContentController) ListFeed(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	sort := strings.ToLower(strings.TrimSpace(ctx.Query("sort")))
	items, total, err := c.eng.ListFeed(ctx.Request.Context(), actorFrom(ctx), page, pageSize, sort)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"items":      items,
		"pagination": pagination(page, pageSize, total),
	})
}

// ListReplies returns the live replies of :id, oldest first.
func (c *ContentController) ListReplies(ctx *gin.Context) {
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	items, err := c.eng.ListReplies(ctx.Request.Context(), actorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// ListUserContent returns live items authored by :username.
func (c *ContentController) ListUserContent(ctx *gin.Context) {
	items, err := c.eng.ListUserContent(ctx.Request.Context(), actorFrom(ctx), strings.TrimSpace(ctx.Param("username")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

// DeleteContent removes an item and everything hanging off it.
func (c *ContentController) DeleteContent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	if err := c.eng.DeleteContent(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": id})
}

type toggleRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// SetPinned pins or unpins an item. Admin only.
func (c *ContentController) SetPinned(ctx *gin.Context) {
	c.toggle(ctx, c.eng.SetPinned)
}

// SetRepliesDisabled lets the author close or reopen replies.
func (c *ContentController) SetRepliesDisabled(ctx *gin.Context) {
	c.toggle(ctx, c.eng.SetRepliesDisabled)
}

func (c *ContentController) toggle(ctx *gin.Context, apply func(context.Context, services.Actor, uint, bool) error) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}
	var req toggleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if err := apply(ctx.Request.Context(), actor, id, *req.Value); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "value": *req.Value})
}
