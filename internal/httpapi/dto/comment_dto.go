package dto

import (
	"time"

	"commenthub/internal/httpapi/models"
)

// CreateCommentDTO carries the user-editable fields of a submission. The
// create endpoint accepts browser form posts, so fields bind from form data.
type CreateCommentDTO struct {
	CommentableType string `form:"commentable_type" binding:"required,max=64"`
	CommentableID   uint   `form:"commentable_id" binding:"required"`
	ParentID        *uint  `form:"parent_id"`
	Title           string `form:"title" binding:"max=255"`
	Contacts        string `form:"contacts" binding:"max=255"`
	RawContent      string `form:"raw_content" binding:"required,min=1,max=5000"`
	ToleranceTime   int    `form:"tolerance_time"`
}

// PatchCommentDTO carries the permitted subset of editable fields.
type PatchCommentDTO struct {
	Title      *string `json:"title" binding:"omitempty,max=255"`
	Contacts   *string `json:"contacts" binding:"omitempty,max=255"`
	RawContent *string `json:"raw_content" binding:"omitempty,min=1,max=5000"`
	ParentID   *uint   `json:"parent_id"`
}

// CommentResponse is the detailed view of one comment.
type CommentResponse struct {
	ID               uint                `json:"id"`
	ParentID         *uint               `json:"parent_id,omitempty"`
	CommentableType  string              `json:"commentable_type"`
	CommentableID    uint                `json:"commentable_id"`
	CommentableTitle string              `json:"commentable_title"`
	CommentableURL   string              `json:"commentable_url"`
	AuthorName       string              `json:"author_name,omitempty"`
	Title            string              `json:"title,omitempty"`
	Content          string              `json:"content"`
	State            models.CommentState `json:"state"`
	Spam             bool                `json:"spam"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// FromModelToCommentResponse converts a Comment model to its response DTO.
func FromModelToCommentResponse(comment *models.Comment) *CommentResponse {
	resp := &CommentResponse{
		ID:               comment.ID,
		ParentID:         comment.ParentID,
		CommentableType:  comment.CommentableType,
		CommentableID:    comment.CommentableID,
		CommentableTitle: comment.CommentableTitle,
		CommentableURL:   comment.CommentableURL,
		Title:            comment.Title,
		Content:          comment.Content,
		State:            comment.State,
		Spam:             comment.Spam,
		CreatedAt:        comment.CreatedAt,
		UpdatedAt:        comment.UpdatedAt,
	}
	if comment.Author != nil {
		resp.AuthorName = comment.Author.Username
	}
	return resp
}

// ThreadNode is one comment in a nested thread response.
type ThreadNode struct {
	ID         uint          `json:"id"`
	AuthorName string        `json:"author_name,omitempty"`
	Title      string        `json:"title,omitempty"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
	Children   []*ThreadNode `json:"children,omitempty"`
}

// NewThreadResponse assembles the flat published-comment list into a nested
// tree. Input must be ordered oldest first so parents precede their replies.
func NewThreadResponse(comments []models.Comment) []*ThreadNode {
	byID := make(map[uint]*ThreadNode, len(comments))
	var roots []*ThreadNode

	for i := range comments {
		c := &comments[i]
		node := &ThreadNode{
			ID:        c.ID,
			Title:     c.Title,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
		if c.Author != nil {
			node.AuthorName = c.Author.Username
		}
		byID[c.ID] = node

		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots
}

// PaginatedCommentResponse wraps a moderation or listing page.
type PaginatedCommentResponse struct {
	Data       []CommentResponse `json:"data"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// NewPaginatedCommentResponse creates a paginated comment response.
func NewPaginatedCommentResponse(data []CommentResponse, total, page, pageSize int) *PaginatedCommentResponse {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	return &PaginatedCommentResponse{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
