package community

import "time"

// Article is a free-form community post, optionally pinned to a game.
type Article struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	GameAppID *int64    `gorm:"index" json:"appid,omitempty"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a flat reply to an article. There is no nesting.
type Comment struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	ArticleID uint64    `gorm:"index;not null" json:"article_id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review is a structured rating of a game. Each account gets at most one
// review per game, enforced by the composite unique index.
type Review struct {
	ID                 uint64    `gorm:"primaryKey" json:"id"`
	UserID             uint64    `gorm:"uniqueIndex:idx_user_game_review;not null" json:"user_id"`
	GameAppID          int64     `gorm:"uniqueIndex:idx_user_game_review;not null" json:"appid"`
	RatingFun          int       `gorm:"not null" json:"rating_fun"`
	RatingStory        int       `gorm:"not null" json:"rating_story"`
	RatingControl      int       `gorm:"not null" json:"rating_control"`
	RatingSound        int       `gorm:"not null" json:"rating_sound"`
	RatingOptimization int       `gorm:"not null" json:"rating_optimization"`
	Content            string    `gorm:"type:text" json:"content"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
