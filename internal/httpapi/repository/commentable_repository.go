package repository

import (
	"context"
	"errors"

	"commenthub/internal/httpapi/models"

	"gorm.io/gorm"
)

// CommentableResolver looks up the external resource a comment targets. The
// comment core only reads Title and URL from the result.
type CommentableResolver interface {
	Find(ctx context.Context, ctype string, refID uint) (*models.Commentable, error)
	Register(ctx context.Context, commentable *models.Commentable) error
}

type commentableRepository struct {
	db *gorm.DB
}

func NewCommentableRepository(db *gorm.DB) CommentableResolver {
	return &commentableRepository{db: db}
}

// Find resolves a commentable by its type and external reference ID.
func (r *commentableRepository) Find(ctx context.Context, ctype string, refID uint) (*models.Commentable, error) {
	var commentable models.Commentable
	err := r.db.WithContext(ctx).
		Where("type = ? AND ref_id = ?", ctype, refID).
		First(&commentable).Error
	if err != nil {
		return nil, err
	}
	return &commentable, nil
}

// Register upserts a commentable registry row so a host application can make
// one of its resources accept comments.
func (r *commentableRepository) Register(ctx context.Context, commentable *models.Commentable) error {
	existing := models.Commentable{}
	err := r.db.WithContext(ctx).
		Where("type = ? AND ref_id = ?", commentable.Type, commentable.RefID).
		First(&existing).Error
	if err == nil {
		commentable.ID = existing.ID
		return r.db.WithContext(ctx).Save(commentable).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(commentable).Error
}
