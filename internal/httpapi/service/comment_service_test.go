package service

import (
	"context"
	"testing"

	"commenthub/internal/httpapi/dto"
	"commenthub/internal/httpapi/models"
	"commenthub/internal/httpapi/protection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockCommentRepository mocks the CommentRepository interface
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) GetByID(ctx context.Context, commentID uint) (*models.Comment, error) {
	args := m.Called(ctx, commentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListThread(ctx context.Context, ctype string, cid uint) ([]models.Comment, error) {
	args := m.Called(ctx, ctype, cid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByState(ctx context.Context, state models.CommentState, page, pageSize int) ([]models.Comment, int64, error) {
	args := m.Called(ctx, state, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Comment), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommentRepository) ListSpam(ctx context.Context, page, pageSize int) ([]models.Comment, int64, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Comment), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommentRepository) ListByAuthor(ctx context.Context, authorID string, page, pageSize int) ([]models.Comment, int64, error) {
	args := m.Called(ctx, authorID, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Comment), args.Get(1).(int64), args.Error(2)
}

// MockCommentableResolver mocks the CommentableResolver interface
type MockCommentableResolver struct {
	mock.Mock
}

func (m *MockCommentableResolver) Find(ctx context.Context, ctype string, refID uint) (*models.Commentable, error) {
	args := m.Called(ctx, ctype, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commentable), args.Error(1)
}

func (m *MockCommentableResolver) Register(ctx context.Context, commentable *models.Commentable) error {
	args := m.Called(ctx, commentable)
	return args.Error(0)
}

func testPipeline() *protection.Pipeline {
	return protection.NewPipeline(protection.Config{
		CookieToken:             protection.CookiesToken,
		EmptyTrapProtection:     true,
		TrapFields:              []string{"message"},
		ToleranceTimeProtection: true,
		ToleranceTime:           5,
	})
}

func cleanProtection() protection.Submission {
	return protection.Submission{
		XHR:           true,
		CookieValue:   protection.CookiesToken,
		TrapValues:    map[string]string{"message": ""},
		ToleranceTime: 10,
	}
}

func validInput() SubmissionInput {
	return SubmissionInput{
		CommentableType: "Article",
		CommentableID:   42,
		Title:           "Nice read",
		RawContent:      "I enjoyed this.",
		ToleranceTime:   10,
		ViewToken:       "visitor-token-abc",
		Meta: models.RequestMeta{
			IP:        "203.0.113.7",
			Referer:   "https://example.com/articles/42",
			UserAgent: "test-agent",
		},
		Protection: cleanProtection(),
	}
}

func newService(repo *MockCommentRepository, resolver *MockCommentableResolver) CommentService {
	return NewCommentService(repo, resolver, testPipeline(), nil)
}

func TestSubmit_Success(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{
		Type:  "Article",
		RefID: 42,
		Title: "The Article Title",
		URL:   "/articles/42",
	}, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Comment")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Comment).ID = 7
		}).
		Return(nil)

	created, rejected, err := svc.Submit(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.NotNil(t, created)
	assert.Equal(t, uint(7), created.ID)
	assert.Equal(t, models.StateDraft, created.State)
	assert.Equal(t, "The Article Title", created.CommentableTitle)
	assert.Equal(t, "/articles/42", created.CommentableURL)
	assert.False(t, created.Spam)
	repo.AssertExpectations(t)
	resolver.AssertExpectations(t)
}

func TestSubmit_StampsViewTokenAndMeta(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	var persisted *models.Comment
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Comment")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*models.Comment)
		}).
		Return(nil)

	_, rejected, err := svc.Submit(context.Background(), validInput())

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Equal(t, "visitor-token-abc", persisted.ViewToken)
	assert.Equal(t, "203.0.113.7", persisted.RequestMeta.IP)
	assert.Equal(t, "test-agent", persisted.RequestMeta.UserAgent)
	assert.NotEmpty(t, persisted.Content)
}

func TestSubmit_CommentableNotFound(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(nil, gorm.ErrRecordNotFound)

	created, rejected, err := svc.Submit(context.Background(), validInput())

	assert.ErrorIs(t, err, ErrCommentableNotFound)
	assert.Nil(t, created)
	assert.Empty(t, rejected)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_MissingCookieNothingPersisted(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	input := validInput()
	input.Protection.CookieValue = ""

	created, rejected, err := svc.Submit(context.Background(), input)

	assert.NoError(t, err)
	assert.Nil(t, created)
	assert.Len(t, rejected, 1)
	assert.Equal(t, protection.LabelCookies, rejected[0].Label)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_ToleranceDeficitReported(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	input := validInput()
	input.Protection.ToleranceTime = 1

	_, rejected, err := svc.Submit(context.Background(), input)

	assert.NoError(t, err)
	assert.Len(t, rejected, 1)
	assert.Equal(t, protection.LabelTolerance, rejected[0].Label)
	assert.Equal(t, 4, rejected[0].Deficit)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_ParentOnDifferentCommentableRejected(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	parentID := uint(3)
	repo.On("GetByID", mock.Anything, parentID).Return(&models.Comment{
		ID:              3,
		CommentableType: "Product",
		CommentableID:   9,
	}, nil)

	input := validInput()
	input.ParentID = &parentID

	created, rejected, err := svc.Submit(context.Background(), input)

	assert.NoError(t, err)
	assert.Nil(t, created)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "parent_id", rejected[0].Label)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_ParentOnSameCommentableAccepted(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	parentID := uint(3)
	repo.On("GetByID", mock.Anything, parentID).Return(&models.Comment{
		ID:              3,
		CommentableType: "Article",
		CommentableID:   42,
	}, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	input := validInput()
	input.ParentID = &parentID

	created, rejected, err := svc.Submit(context.Background(), input)

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.NotNil(t, created)
	repo.AssertExpectations(t)
}

func TestPatch_SelfParentRejected(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:              7,
		CommentableType: "Article",
		CommentableID:   42,
		ViewToken:       "visitor-token-abc",
		RawContent:      "original",
	}, nil)

	selfID := uint(7)
	comment, rejected, err := svc.Patch(context.Background(), 7, dto.PatchCommentDTO{
		ParentID: &selfID,
	}, Actor{ViewToken: "visitor-token-abc"})

	assert.NoError(t, err)
	assert.Nil(t, comment)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "parent_id", rejected[0].Label)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPatch_ParentCycleRejected(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	// Comment 2 is a reply to comment 1; re-parenting 1 under 2 would close
	// a cycle.
	rootID := uint(1)
	repo.On("GetByID", mock.Anything, uint(1)).Return(&models.Comment{
		ID:              1,
		CommentableType: "Article",
		CommentableID:   42,
		ViewToken:       "visitor-token-abc",
		RawContent:      "root",
	}, nil)
	repo.On("GetByID", mock.Anything, uint(2)).Return(&models.Comment{
		ID:              2,
		ParentID:        &rootID,
		CommentableType: "Article",
		CommentableID:   42,
		RawContent:      "reply",
	}, nil)

	childID := uint(2)
	comment, rejected, err := svc.Patch(context.Background(), 1, dto.PatchCommentDTO{
		ParentID: &childID,
	}, Actor{ViewToken: "visitor-token-abc"})

	assert.NoError(t, err)
	assert.Nil(t, comment)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "parent_id", rejected[0].Label)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPatch_ReparentToSiblingAccepted(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	// Comments 2 and 3 are both replies to root 1; moving 3 under 2 keeps
	// the thread a tree.
	rootID := uint(1)
	repo.On("GetByID", mock.Anything, uint(3)).Return(&models.Comment{
		ID:              3,
		ParentID:        &rootID,
		CommentableType: "Article",
		CommentableID:   42,
		ViewToken:       "visitor-token-abc",
		RawContent:      "moved reply",
	}, nil)
	repo.On("GetByID", mock.Anything, uint(2)).Return(&models.Comment{
		ID:              2,
		ParentID:        &rootID,
		CommentableType: "Article",
		CommentableID:   42,
		RawContent:      "sibling",
	}, nil)
	repo.On("GetByID", mock.Anything, uint(1)).Return(&models.Comment{
		ID:              1,
		CommentableType: "Article",
		CommentableID:   42,
		RawContent:      "root",
	}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	siblingID := uint(2)
	comment, rejected, err := svc.Patch(context.Background(), 3, dto.PatchCommentDTO{
		ParentID: &siblingID,
	}, Actor{ViewToken: "visitor-token-abc"})

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.NotNil(t, comment)
	assert.Equal(t, &siblingID, comment.ParentID)
	repo.AssertExpectations(t)
}

func TestMarkAsSpam_AlsoDeletes(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:    7,
		State: models.StatePublished,
	}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	comment, err := svc.MarkAsSpam(context.Background(), 7)

	assert.NoError(t, err)
	assert.True(t, comment.Spam)
	assert.Equal(t, models.StateDeleted, comment.State)
	repo.AssertExpectations(t)
}

func TestTransition_SameStateIsNoOp(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:         7,
		State:      models.StateDraft,
		RawContent: "unchanged",
	}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	comment, err := svc.Transition(context.Background(), 7, models.StateDraft)

	assert.NoError(t, err)
	assert.Equal(t, models.StateDraft, comment.State)
	assert.False(t, comment.Spam)
}

func TestTransition_InvalidState(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	comment, err := svc.Transition(context.Background(), 7, "moderating")

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, comment)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestTransition_NotFound(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(999)).Return(nil, gorm.ErrRecordNotFound)

	comment, err := svc.Transition(context.Background(), 999, models.StatePublished)

	assert.ErrorIs(t, err, ErrCommentNotFound)
	assert.Nil(t, comment)
}

func TestPatch_NotFound(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(999)).Return(nil, gorm.ErrRecordNotFound)

	comment, rejected, err := svc.Patch(context.Background(), 999, dto.PatchCommentDTO{}, Actor{})

	assert.ErrorIs(t, err, ErrCommentNotFound)
	assert.Nil(t, comment)
	assert.Empty(t, rejected)
}

func TestPatch_AnonymousOwnerByViewToken(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:              7,
		CommentableType: "Article",
		CommentableID:   42,
		ViewToken:       "visitor-token-abc",
		RawContent:      "original",
	}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	newContent := "edited content"
	comment, rejected, err := svc.Patch(context.Background(), 7, dto.PatchCommentDTO{
		RawContent: &newContent,
	}, Actor{ViewToken: "visitor-token-abc"})

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.NotNil(t, comment)
	repo.AssertExpectations(t)
}

func TestPatch_WrongViewTokenForbidden(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:        7,
		ViewToken: "visitor-token-abc",
	}, nil)

	comment, _, err := svc.Patch(context.Background(), 7, dto.PatchCommentDTO{}, Actor{ViewToken: "someone-else"})

	assert.ErrorIs(t, err, ErrNotCommentOwner)
	assert.Nil(t, comment)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPatch_ModeratorMayEditAnything(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	authorID := "user-1"
	repo.On("GetByID", mock.Anything, uint(7)).Return(&models.Comment{
		ID:         7,
		AuthorID:   &authorID,
		RawContent: "original",
	}, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)

	title := "moderated title"
	comment, rejected, err := svc.Patch(context.Background(), 7, dto.PatchCommentDTO{
		Title: &title,
	}, Actor{UserID: "mod-1", Role: "moderator"})

	assert.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Equal(t, "moderated title", comment.Title)
}

func TestGetThread_BuildsTree(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(&models.Commentable{Title: "t", URL: "u"}, nil)

	parentID := uint(1)
	repo.On("ListThread", mock.Anything, "Article", uint(42)).Return([]models.Comment{
		{ID: 1, Content: "root"},
		{ID: 2, ParentID: &parentID, Content: "reply"},
	}, nil)

	thread, err := svc.GetThread(context.Background(), "Article", 42)

	assert.NoError(t, err)
	assert.Len(t, thread, 1)
	assert.Equal(t, uint(1), thread[0].ID)
	assert.Len(t, thread[0].Children, 1)
	assert.Equal(t, uint(2), thread[0].Children[0].ID)
}

func TestGetThread_CommentableNotFound(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	resolver.On("Find", mock.Anything, "Article", uint(42)).Return(nil, gorm.ErrRecordNotFound)

	thread, err := svc.GetThread(context.Background(), "Article", 42)

	assert.ErrorIs(t, err, ErrCommentableNotFound)
	assert.Nil(t, thread)
}

func TestGetModerationQueue_InvalidState(t *testing.T) {
	repo := new(MockCommentRepository)
	resolver := new(MockCommentableResolver)
	svc := newService(repo, resolver)

	queue, err := svc.GetModerationQueue(context.Background(), "spam", 1, 20)

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Nil(t, queue)
}
