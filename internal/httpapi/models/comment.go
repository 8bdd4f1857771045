package models

import "time"

// CommentState is the moderation state of a comment. Exactly one state is
// active at a time; the spam flag is tracked separately.
type CommentState string

const (
	StateDraft     CommentState = "draft"
	StatePublished CommentState = "published"
	StateDeleted   CommentState = "deleted"
)

// ValidState reports whether s is one of the known moderation states.
func ValidState(s CommentState) bool {
	switch s {
	case StateDraft, StatePublished, StateDeleted:
		return true
	}
	return false
}

// RequestMeta is the request audit trail captured once at submission time.
type RequestMeta struct {
	IP        string `json:"ip" gorm:"column:request_ip;size:45"`
	Referer   string `json:"referer" gorm:"column:request_referer;size:2048"`
	UserAgent string `json:"user_agent" gorm:"column:request_user_agent;size:512"`
}

// Comment is a threaded comment on an external commentable resource.
// CommentableTitle and CommentableURL are denormalized from the commentable
// at creation time and never recomputed afterwards.
type Comment struct {
	ID       uint     `json:"id" gorm:"primaryKey;autoIncrement"`
	ParentID *uint    `json:"parent_id,omitempty" gorm:"index"`
	Parent   *Comment `json:"-" gorm:"foreignKey:ParentID"`

	CommentableType  string `json:"commentable_type" gorm:"size:64;not null;index:idx_commentable"`
	CommentableID    uint   `json:"commentable_id" gorm:"not null;index:idx_commentable"`
	CommentableTitle string `json:"commentable_title" gorm:"size:255"`
	CommentableURL   string `json:"commentable_url" gorm:"size:2048"`

	AuthorID *string `json:"author_id,omitempty" gorm:"type:uuid;index"`
	Author   *User   `json:"author,omitempty" gorm:"foreignKey:AuthorID"`

	// ViewToken lets an anonymous submitter be recognized as the owner of
	// their own comments without an account.
	ViewToken string `json:"-" gorm:"size:64;index"`

	Title      string `json:"title" gorm:"size:255"`
	Contacts   string `json:"contacts" gorm:"size:255"`
	RawContent string `json:"raw_content" gorm:"type:text;not null"`
	Content    string `json:"content" gorm:"type:text"`

	State CommentState `json:"state" gorm:"size:16;not null;default:'draft';index"`
	Spam  bool         `json:"spam" gorm:"not null;default:false;index"`

	RequestMeta RequestMeta `json:"request_meta" gorm:"embedded"`

	// ToleranceTime is the client-reported elapsed time in seconds. It is
	// only meaningful while the protection pipeline runs; it is kept as an
	// audit column afterwards.
	ToleranceTime int `json:"tolerance_time" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Comment) TableName() string {
	return "comments"
}

// State transitions. All are idempotent: transitioning into the current
// state leaves the comment unchanged and is not an error.

func (c *Comment) ToDraft() {
	c.State = StateDraft
}

func (c *Comment) ToPublished() {
	c.State = StatePublished
}

func (c *Comment) ToDeleted() {
	c.State = StateDeleted
}

// ToSpam sets the spam flag. The moderation state is untouched; callers that
// want the composite spam-and-remove behavior use the service's MarkAsSpam.
func (c *Comment) ToSpam() {
	c.Spam = true
}
