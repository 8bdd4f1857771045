package handler

import (
	"net/http"

	"commenthub/internal/httpapi/models"
	"commenthub/internal/httpapi/repository"

	"github.com/gin-gonic/gin"
)

type CommentableHandler struct {
	resolver repository.CommentableResolver
}

func NewCommentableHandler(resolver repository.CommentableResolver) *CommentableHandler {
	return &CommentableHandler{resolver: resolver}
}

type registerCommentableRequest struct {
	Type  string `json:"type" binding:"required,max=64"`
	RefID uint   `json:"ref_id" binding:"required"`
	Title string `json:"title" binding:"required,max=255"`
	URL   string `json:"url" binding:"required,max=2048"`
}

// Register upserts a commentable registry entry so a host resource can
// start accepting comments.
// POST /api/moderation/commentables
func (h *CommentableHandler) Register(c *gin.Context) {
	var req registerCommentableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	commentable := &models.Commentable{
		Type:  req.Type,
		RefID: req.RefID,
		Title: req.Title,
		URL:   req.URL,
	}
	if err := h.resolver.Register(c.Request.Context(), commentable); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, commentable)
}
