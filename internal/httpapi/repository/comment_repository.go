package repository

import (
	"context"

	"commenthub/internal/httpapi/models"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, commentID uint) (*models.Comment, error)
	ListThread(ctx context.Context, ctype string, cid uint) ([]models.Comment, error)
	ListByState(ctx context.Context, state models.CommentState, page, pageSize int) ([]models.Comment, int64, error)
	ListSpam(ctx context.Context, page, pageSize int) ([]models.Comment, int64, error)
	ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Comment, int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create persists a new comment
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// Update persists every field of an existing comment
func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

// GetByID retrieves a comment by its ID
func (r *commentRepository) GetByID(ctx context.Context, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).
		Where("id = ?", commentID).
		Preload("Author").
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListThread retrieves the published comments of one commentable, oldest
// first so callers can assemble the reply tree in a single pass.
func (r *commentRepository) ListThread(ctx context.Context, ctype string, cid uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("commentable_type = ? AND commentable_id = ? AND state = ?", ctype, cid, models.StatePublished).
		Preload("Author").
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ListByState retrieves comments in one moderation state with pagination,
// newest first. This is the moderation queue query.
func (r *commentRepository) ListByState(ctx context.Context, state models.CommentState, page, pageSize int) ([]models.Comment, int64, error) {
	return r.list(ctx, "state = ?", []interface{}{state}, page, pageSize)
}

// ListSpam retrieves spam-flagged comments with pagination, newest first.
func (r *commentRepository) ListSpam(ctx context.Context, page, pageSize int) ([]models.Comment, int64, error) {
	return r.list(ctx, "spam = ?", []interface{}{true}, page, pageSize)
}

// ListByAuthor retrieves all comments by a registered author with pagination.
func (r *commentRepository) ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Comment, int64, error) {
	return r.list(ctx, "author_id = ?", []interface{}{authorID}, page, pageSize)
}

func (r *commentRepository) list(ctx context.Context, query string, args []interface{}, page, pageSize int) ([]models.Comment, int64, error) {
	var comments []models.Comment
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where(query, args...).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Where(query, args...).
		Preload("Author").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}
