package games

import "time"

// Game is one catalog entry, keyed by the external Steam app id. Rows are
// created on first reference with title and placeholder image only; the
// richer descriptive fields are filled lazily by the enrichment service.
type Game struct {
	AppID       int64      `gorm:"primaryKey;autoIncrement:false" json:"appid"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Price       int        `gorm:"not null;default:0" json:"price"`
	Publisher   string     `gorm:"size:255" json:"publisher"`
	HeaderImage string     `gorm:"size:500" json:"header_image"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Genres      string     `gorm:"size:255" json:"genres"`
	Tags        []Tag      `gorm:"many2many:game_tags" json:"-"`
	RefreshedAt *time.Time `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// TableName pins the storage table for Game.
func (Game) TableName() string {
	return "games"
}

// Tag is a storefront category attached to games.
type Tag struct {
	ID   uint64 `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:50;not null" json:"name"`
}

// TableName pins the storage table for Tag.
func (Tag) TableName() string {
	return "tags"
}

// UserGameLibrary is one ownership row per (user, game) pair. Playtime
// figures are minutes as reported by the owned-items API.
type UserGameLibrary struct {
	ID                   uint64    `gorm:"primaryKey" json:"-"`
	UserID               uint64    `gorm:"not null;uniqueIndex:idx_user_game" json:"user_id"`
	GameAppID            int64     `gorm:"not null;uniqueIndex:idx_user_game" json:"-"`
	Game                 Game      `gorm:"foreignKey:GameAppID;references:AppID" json:"game"`
	PlaytimeTotal        int       `gorm:"not null;default:0" json:"playtime_total"`
	PlaytimeRecent2Weeks int       `gorm:"column:playtime_recent_2weeks;not null;default:0" json:"playtime_recent_2weeks"`
	LastSyncedAt         time.Time `gorm:"autoUpdateTime" json:"last_synced_at"`
}

// TableName pins the storage table for UserGameLibrary.
func (UserGameLibrary) TableName() string {
	return "user_game_libraries"
}

// UserFavoriteGame is the single favorite slot per account, created empty
// alongside the account and overwritten on each selection.
type UserFavoriteGame struct {
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	GameAppID *int64    `json:"appid,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the storage table for UserFavoriteGame.
func (UserFavoriteGame) TableName() string {
	return "user_favorite_games"
}
