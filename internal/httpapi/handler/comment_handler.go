package handler

import (
	"errors"
	"net/http"
	"strconv"

	"commenthub/internal/httpapi/dto"
	"commenthub/internal/httpapi/middleware"
	"commenthub/internal/httpapi/models"
	"commenthub/internal/httpapi/protection"
	"commenthub/internal/httpapi/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService service.CommentService
	trapFields     []string
}

func NewCommentHandler(commentService service.CommentService, trapFields []string) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		trapFields:     trapFields,
	}
}

// Create submits a new comment through the protection pipeline.
// POST /api/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req dto.CreateCommentDTO
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.SubmissionInput{
		CommentableType: req.CommentableType,
		CommentableID:   req.CommentableID,
		ParentID:        req.ParentID,
		Title:           req.Title,
		Contacts:        req.Contacts,
		RawContent:      req.RawContent,
		ToleranceTime:   req.ToleranceTime,
		ViewToken:       cookieValue(c, middleware.ViewTokenCookie),
		Meta:            requestMeta(c),
		Protection:      h.protectionSubmission(c, req.ToleranceTime),
	}
	if userID, exists := c.Get("userID"); exists {
		id := userID.(string)
		input.AuthorID = &id
	}

	comment, rejected, err := h.commentService.Submit(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrCommentableNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "commentable not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(rejected) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": rejected})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// Patch edits a comment owned by the caller. No protection checks apply.
// PATCH /api/comments/:id
func (h *CommentHandler) Patch(c *gin.Context) {
	commentID, ok := commentIDParam(c)
	if !ok {
		return
	}

	var req dto.PatchCommentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, rejected, err := h.commentService.Patch(c.Request.Context(), commentID, req, h.actor(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		case errors.Is(err, service.ErrNotCommentOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to edit this comment"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	if len(rejected) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": rejected})
		return
	}

	c.JSON(http.StatusOK, comment)
}

// Transition moves a comment into a target moderation state.
// PUT /api/moderation/comments/:id/state/:state
func (h *CommentHandler) Transition(c *gin.Context) {
	commentID, ok := commentIDParam(c)
	if !ok {
		return
	}

	comment, err := h.commentService.Transition(c.Request.Context(), commentID, models.CommentState(c.Param("state")))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown comment state"})
		case errors.Is(err, service.ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, comment)
}

// MarkAsSpam flags a comment as spam and removes it from visible states.
// PUT /api/moderation/comments/:id/spam
func (h *CommentHandler) MarkAsSpam(c *gin.Context) {
	commentID, ok := commentIDParam(c)
	if !ok {
		return
	}

	comment, err := h.commentService.MarkAsSpam(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, service.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comment)
}

// GetByID retrieves a single comment.
// GET /api/comments/:id
func (h *CommentHandler) GetByID(c *gin.Context) {
	commentID, ok := commentIDParam(c)
	if !ok {
		return
	}

	comment, err := h.commentService.GetCommentByID(c.Request.Context(), commentID)
	if err != nil {
		if errors.Is(err, service.ErrCommentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comment)
}

// Thread returns the published comment tree of one commentable.
// GET /api/threads/:type/:id
func (h *CommentHandler) Thread(c *gin.Context) {
	cid, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid commentable ID"})
		return
	}

	thread, err := h.commentService.GetThread(c.Request.Context(), c.Param("type"), uint(cid))
	if err != nil {
		if errors.Is(err, service.ErrCommentableNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "commentable not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": thread})
}

// ModerationQueue lists comments in one moderation state.
// GET /api/moderation/comments/:state?page=1&page_size=20
func (h *CommentHandler) ModerationQueue(c *gin.Context) {
	page, pageSize := pagination(c)

	comments, err := h.commentService.GetModerationQueue(c.Request.Context(), models.CommentState(c.Param("state")), page, pageSize)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown comment state"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comments)
}

// SpamQueue lists spam-flagged comments.
// GET /api/moderation/spam?page=1&page_size=20
func (h *CommentHandler) SpamQueue(c *gin.Context) {
	page, pageSize := pagination(c)

	comments, err := h.commentService.GetSpamQueue(c.Request.Context(), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comments)
}

// ListMine lists the authenticated user's own comments.
// GET /api/comments/me?page=1&page_size=20
func (h *CommentHandler) ListMine(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	page, pageSize := pagination(c)

	comments, err := h.commentService.GetAuthorComments(c.Request.Context(), userID.(string), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comments)
}

// protectionSubmission gathers the protection-relevant request facts: the
// transport header, the human-proof cookie and the configured trap fields.
func (h *CommentHandler) protectionSubmission(c *gin.Context, toleranceTime int) protection.Submission {
	traps := make(map[string]string, len(h.trapFields))
	for _, field := range h.trapFields {
		traps[field] = c.PostForm(field)
	}

	return protection.Submission{
		XHR:           c.GetHeader("X-Requested-With") == "XMLHttpRequest",
		CookieValue:   cookieValue(c, middleware.HumanProofCookie),
		TrapValues:    traps,
		ToleranceTime: toleranceTime,
	}
}

func (h *CommentHandler) actor(c *gin.Context) service.Actor {
	actor := service.Actor{
		ViewToken: cookieValue(c, middleware.ViewTokenCookie),
	}
	if userID, exists := c.Get("userID"); exists {
		actor.UserID = userID.(string)
	}
	if role, exists := c.Get("role"); exists {
		actor.Role = role.(string)
	}
	return actor
}

func requestMeta(c *gin.Context) models.RequestMeta {
	referer := c.Request.Referer()
	if referer == "" {
		referer = "direct_visit"
	}
	return models.RequestMeta{
		IP:        c.ClientIP(),
		Referer:   referer,
		UserAgent: c.Request.UserAgent(),
	}
}

func cookieValue(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return value
}

func commentIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment ID"})
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
