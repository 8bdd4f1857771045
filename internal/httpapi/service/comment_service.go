package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"commenthub/internal/httpapi/dto"
	"commenthub/internal/httpapi/models"
	"commenthub/internal/httpapi/protection"
	"commenthub/internal/httpapi/repository"
	"commenthub/internal/render"

	"gorm.io/gorm"
)

var (
	ErrCommentableNotFound = errors.New("commentable not found")
	ErrCommentNotFound     = errors.New("comment not found")
	ErrNotCommentOwner     = errors.New("not allowed to edit this comment")
	ErrInvalidState        = errors.New("unknown comment state")
)

// Actor is the caller identity for ownership checks. UserID is empty for
// anonymous visitors, who are recognized by their view token instead.
type Actor struct {
	UserID    string
	Role      string
	ViewToken string
}

func (a Actor) IsModerator() bool {
	return a.Role == "moderator"
}

// SubmissionInput is everything the orchestrator needs to create a comment.
type SubmissionInput struct {
	CommentableType string
	CommentableID   uint
	ParentID        *uint
	Title           string
	Contacts        string
	RawContent      string
	ToleranceTime   int

	AuthorID  *string
	ViewToken string
	Meta      models.RequestMeta

	Protection protection.Submission
}

type CommentService interface {
	// Submit runs the full creation pipeline. A non-nil rejected list means
	// the submission failed a protection check or content validation and
	// nothing was persisted; err covers ErrCommentableNotFound and
	// infrastructure failures.
	Submit(ctx context.Context, input SubmissionInput) (created *dto.CommentResponse, rejected []protection.Error, err error)

	Patch(ctx context.Context, commentID uint, patch dto.PatchCommentDTO, actor Actor) (*dto.CommentResponse, []protection.Error, error)
	Transition(ctx context.Context, commentID uint, target models.CommentState) (*dto.CommentResponse, error)
	MarkAsSpam(ctx context.Context, commentID uint) (*dto.CommentResponse, error)

	GetCommentByID(ctx context.Context, commentID uint) (*dto.CommentResponse, error)
	GetThread(ctx context.Context, ctype string, cid uint) ([]*dto.ThreadNode, error)
	GetModerationQueue(ctx context.Context, state models.CommentState, page, pageSize int) (*dto.PaginatedCommentResponse, error)
	GetSpamQueue(ctx context.Context, page, pageSize int) (*dto.PaginatedCommentResponse, error)
	GetAuthorComments(ctx context.Context, authorID string, page, pageSize int) (*dto.PaginatedCommentResponse, error)
}

type commentService struct {
	commentRepo repository.CommentRepository
	resolver    repository.CommentableResolver
	pipeline    *protection.Pipeline
	cache       *repository.ThreadCache
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	resolver repository.CommentableResolver,
	pipeline *protection.Pipeline,
	cache *repository.ThreadCache,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		resolver:    resolver,
		pipeline:    pipeline,
		cache:       cache,
	}
}

// Submit creates a comment. Each step gates the next: commentable lookup,
// protection pipeline, comment construction, content validation, persistence.
// Any failure leaves zero persisted side effects.
func (s *commentService) Submit(ctx context.Context, input SubmissionInput) (*dto.CommentResponse, []protection.Error, error) {
	commentable, err := s.resolver.Find(ctx, input.CommentableType, input.CommentableID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCommentableNotFound
		}
		return nil, nil, err
	}

	if rejected := s.pipeline.Check(input.Protection); len(rejected) > 0 {
		return nil, rejected, nil
	}

	comment := &models.Comment{
		ParentID:         input.ParentID,
		CommentableType:  input.CommentableType,
		CommentableID:    input.CommentableID,
		CommentableTitle: commentable.Title,
		CommentableURL:   commentable.URL,
		AuthorID:         input.AuthorID,
		ViewToken:        input.ViewToken,
		Title:            input.Title,
		Contacts:         input.Contacts,
		RawContent:       input.RawContent,
		Content:          render.Markdown(input.RawContent),
		RequestMeta:      input.Meta,
		ToleranceTime:    input.ToleranceTime,
	}
	comment.ToDraft()

	if rejected, err := s.validateContent(ctx, comment); err != nil {
		return nil, nil, err
	} else if len(rejected) > 0 {
		return nil, rejected, nil
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, nil, err
	}

	return dto.FromModelToCommentResponse(comment), nil, nil
}

// validateContent checks field content and the parent invariant. A reply must
// reference another comment on the same commentable; cross-thread parents are
// rejected rather than silently re-rooted, and the parent chain must stay a
// tree, so a comment can never appear among its own ancestors.
func (s *commentService) validateContent(ctx context.Context, comment *models.Comment) ([]protection.Error, error) {
	var rejected []protection.Error

	if strings.TrimSpace(comment.RawContent) == "" {
		rejected = append(rejected, protection.Error{
			Label:   "raw_content",
			Message: "content must not be blank",
		})
	}

	if comment.ParentID != nil {
		if comment.ID != 0 && *comment.ParentID == comment.ID {
			rejected = append(rejected, protection.Error{
				Label:   "parent_id",
				Message: "comment cannot be its own parent",
			})
			return rejected, nil
		}

		parent, err := s.commentRepo.GetByID(ctx, *comment.ParentID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			rejected = append(rejected, protection.Error{
				Label:   "parent_id",
				Message: "parent comment does not exist",
			})
		} else if parent.CommentableType != comment.CommentableType || parent.CommentableID != comment.CommentableID {
			rejected = append(rejected, protection.Error{
				Label:   "parent_id",
				Message: "parent comment belongs to a different thread",
			})
		} else if comment.ID != 0 {
			// Re-parenting an existing comment: walk the new parent's
			// ancestor chain; reaching this comment would close a cycle.
			cyclic, err := s.parentChainContains(ctx, parent, comment.ID)
			if err != nil {
				return nil, err
			}
			if cyclic {
				rejected = append(rejected, protection.Error{
					Label:   "parent_id",
					Message: "parent comment is a reply to this comment",
				})
			}
		}
	}

	return rejected, nil
}

// parentChainContains walks from parent up to the thread root and reports
// whether commentID occurs on the way. The visited set guards against
// pre-existing bad data looping the walk.
func (s *commentService) parentChainContains(ctx context.Context, parent *models.Comment, commentID uint) (bool, error) {
	visited := map[uint]bool{parent.ID: true}
	current := parent
	for current.ParentID != nil {
		ancestorID := *current.ParentID
		if ancestorID == commentID {
			return true, nil
		}
		if visited[ancestorID] {
			return false, nil
		}
		visited[ancestorID] = true

		ancestor, err := s.commentRepo.GetByID(ctx, ancestorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		current = ancestor
	}
	return false, nil
}

// Patch applies the permitted editable fields to an existing comment. No
// protection checks run on updates.
func (s *commentService) Patch(ctx context.Context, commentID uint, patch dto.PatchCommentDTO, actor Actor) (*dto.CommentResponse, []protection.Error, error) {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}

	if !s.canEdit(comment, actor) {
		return nil, nil, ErrNotCommentOwner
	}

	if patch.Title != nil {
		comment.Title = *patch.Title
	}
	if patch.Contacts != nil {
		comment.Contacts = *patch.Contacts
	}
	if patch.RawContent != nil {
		comment.RawContent = *patch.RawContent
		comment.Content = render.Markdown(*patch.RawContent)
	}
	if patch.ParentID != nil {
		comment.ParentID = patch.ParentID
	}

	if rejected, err := s.validateContent(ctx, comment); err != nil {
		return nil, nil, err
	} else if len(rejected) > 0 {
		return nil, rejected, nil
	}

	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, nil, err
	}
	s.cache.Invalidate(ctx, comment.CommentableType, comment.CommentableID)

	return dto.FromModelToCommentResponse(comment), nil, nil
}

func (s *commentService) canEdit(comment *models.Comment, actor Actor) bool {
	if actor.IsModerator() {
		return true
	}
	if comment.AuthorID != nil {
		return actor.UserID != "" && actor.UserID == *comment.AuthorID
	}
	return actor.ViewToken != "" && actor.ViewToken == comment.ViewToken
}

// Transition moves a comment into the target moderation state. Transitioning
// into the current state is a no-op, not an error.
func (s *commentService) Transition(ctx context.Context, commentID uint, target models.CommentState) (*dto.CommentResponse, error) {
	if !models.ValidState(target) {
		return nil, ErrInvalidState
	}

	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	switch target {
	case models.StateDraft:
		comment.ToDraft()
	case models.StatePublished:
		comment.ToPublished()
	case models.StateDeleted:
		comment.ToDeleted()
	}

	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, comment.CommentableType, comment.CommentableID)

	return dto.FromModelToCommentResponse(comment), nil
}

// MarkAsSpam flags the comment as spam and then removes it from the visible
// states. The two steps always run together so a spam comment can never stay
// published.
func (s *commentService) MarkAsSpam(ctx context.Context, commentID uint) (*dto.CommentResponse, error) {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	comment.ToSpam()
	comment.ToDeleted()

	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, comment.CommentableType, comment.CommentableID)

	return dto.FromModelToCommentResponse(comment), nil
}

// GetCommentByID retrieves a comment by ID
func (s *commentService) GetCommentByID(ctx context.Context, commentID uint) (*dto.CommentResponse, error) {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return dto.FromModelToCommentResponse(comment), nil
}

// GetThread returns the published comments of one commentable as a nested
// tree, served from the cache when possible.
func (s *commentService) GetThread(ctx context.Context, ctype string, cid uint) ([]*dto.ThreadNode, error) {
	if payload, ok := s.cache.GetThread(ctx, ctype, cid); ok {
		var thread []*dto.ThreadNode
		if err := json.Unmarshal(payload, &thread); err == nil {
			return thread, nil
		}
		// Unreadable entry, fall through to the database.
		s.cache.Invalidate(ctx, ctype, cid)
	}

	if _, err := s.resolver.Find(ctx, ctype, cid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentableNotFound
		}
		return nil, err
	}

	comments, err := s.commentRepo.ListThread(ctx, ctype, cid)
	if err != nil {
		return nil, err
	}

	thread := dto.NewThreadResponse(comments)
	if payload, err := json.Marshal(thread); err == nil {
		s.cache.SetThread(ctx, ctype, cid, payload)
	}
	return thread, nil
}

// GetModerationQueue lists comments in one moderation state.
func (s *commentService) GetModerationQueue(ctx context.Context, state models.CommentState, page, pageSize int) (*dto.PaginatedCommentResponse, error) {
	if !models.ValidState(state) {
		return nil, ErrInvalidState
	}
	comments, total, err := s.commentRepo.ListByState(ctx, state, page, pageSize)
	if err != nil {
		return nil, err
	}
	return paginate(comments, total, page, pageSize), nil
}

// GetSpamQueue lists spam-flagged comments.
func (s *commentService) GetSpamQueue(ctx context.Context, page, pageSize int) (*dto.PaginatedCommentResponse, error) {
	comments, total, err := s.commentRepo.ListSpam(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	return paginate(comments, total, page, pageSize), nil
}

// GetAuthorComments lists all comments by a registered author.
func (s *commentService) GetAuthorComments(ctx context.Context, authorID string, page, pageSize int) (*dto.PaginatedCommentResponse, error) {
	comments, total, err := s.commentRepo.ListByAuthor(ctx, authorID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return paginate(comments, total, page, pageSize), nil
}

func (s *commentService) getComment(ctx context.Context, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return comment, nil
}

func paginate(comments []models.Comment, total int64, page, pageSize int) *dto.PaginatedCommentResponse {
	responses := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		responses = append(responses, *dto.FromModelToCommentResponse(&comments[i]))
	}
	return dto.NewPaginatedCommentResponse(responses, int(total), page, pageSize)
}
