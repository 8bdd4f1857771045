package models

// Commentable is a registry row for an external resource that owns a comment
// thread. Host applications register their resources here; the comment core
// only ever reads Title and URL from it.
type Commentable struct {
	ID    uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Type  string `json:"type" gorm:"size:64;not null;uniqueIndex:idx_commentable_ref"`
	RefID uint   `json:"ref_id" gorm:"not null;uniqueIndex:idx_commentable_ref"`
	Title string `json:"title" gorm:"size:255;not null"`
	URL   string `json:"url" gorm:"size:2048;not null"`
}

func (Commentable) TableName() string {
	return "commentables"
}
