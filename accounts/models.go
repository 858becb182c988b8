package accounts

import "time"

// User represents a Steam-backed account. Username holds the immutable
// Steam id derived from the OpenID claimed id; Nickname and Avatar mirror
// the public Steam profile and are refreshed on every login.
type User struct {
	ID           uint64     `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Nickname     string     `gorm:"size:100;not null;default:''" json:"nickname"`
	Avatar       *string    `gorm:"size:500" json:"avatar,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName pins the storage table for User.
func (User) TableName() string {
	return "users"
}
