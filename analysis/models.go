package analysis

import (
	"time"

	"gorm.io/datatypes"
)

// Recommendation is one validated entry of the rolling analysis result.
// Order is preserved as returned by the model.
type Recommendation struct {
	Title   string `json:"title"`
	Reason  string `json:"reason"`
	AppID   int64  `json:"appid"`
	IsOwned bool   `json:"is_owned"`
}

// AIAnalysisLog is the single rolling analysis record per account. Every
// re-analysis overwrites it in place; there is no history.
type AIAnalysisLog struct {
	ID              uint64         `gorm:"primaryKey" json:"-"`
	UserID          uint64         `gorm:"uniqueIndex;not null" json:"user_id"`
	GamerType       string         `gorm:"size:100" json:"gamer_type"`
	AnalysisText    string         `gorm:"type:text" json:"analysis_text"`
	Recommendations datatypes.JSON `gorm:"type:json" json:"recommendations"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName pins the storage table for AIAnalysisLog.
func (AIAnalysisLog) TableName() string {
	return "ai_analysis_logs"
}

// Review summary lifecycle states. Transitions are caller-driven; there is
// no background worker.
const (
	SummaryStatusPending    = "PENDING"
	SummaryStatusProcessing = "PROCESSING"
	SummaryStatusCompleted  = "COMPLETED"
	SummaryStatusFailed     = "FAILED"
)

// ReviewSummary is the single AI review digest per catalog entry.
type ReviewSummary struct {
	ID            uint64    `gorm:"primaryKey" json:"-"`
	GameAppID     int64     `gorm:"uniqueIndex;not null" json:"appid"`
	Status        string    `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	SummaryText   string    `gorm:"type:text" json:"summary_text"`
	TokensUsed    int       `gorm:"not null;default:0" json:"tokens_used"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// TableName pins the storage table for ReviewSummary.
func (ReviewSummary) TableName() string {
	return "review_summaries"
}
