package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gamehub_back/accounts"
	"gamehub_back/cache"
	"gamehub_back/llm"
	"gamehub_back/steam"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Module wires the AI recommendation and review summary endpoints.
type Module struct {
	db        *gorm.DB
	recommend *RecommendService
	summary   *SummaryService
}

// RegisterRoutes bootstraps the analysis endpoints under /ai. The catalog
// argument is the shared games store; both services read through it.
func RegisterRoutes(router *gin.Engine, guard *accounts.Guard, catalog GameCatalog) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&AIAnalysisLog{}, &ReviewSummary{}); err != nil {
		return nil, fmt.Errorf("analysis: migrate models: %w", err)
	}

	generator, err := llm.NewClientFromEnv()
	if err != nil {
		return nil, err
	}
	steamClient, err := steam.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	requestCount, err := envInt("AI_RECOMMEND_REQUEST", 7)
	if err != nil {
		return nil, err
	}
	maxAccepted, err := envInt("AI_RECOMMEND_LIMIT", 3)
	if err != nil {
		return nil, err
	}
	summaryTTL, err := envDuration("AI_SUMMARY_TTL", defaultSummaryTTL)
	if err != nil {
		return nil, err
	}
	maxReviews, err := envInt("AI_SUMMARY_MAX_REVIEWS", defaultSummaryMaxReviews)
	if err != nil {
		return nil, err
	}

	var summaries *summaryCache
	if redisClient, err := cache.GetRedisClient(); err != nil {
		log.Printf("analysis: summary cache disabled: %v", err)
	} else {
		summaries = newSummaryCache(redisClient, summaryTTL)
	}

	module := &Module{
		db:        db,
		recommend: NewRecommendService(db, catalog, generator, requestCount, maxAccepted),
		summary:   NewSummaryService(db, catalog, generator, steamClient, summaries, summaryTTL, maxReviews),
	}

	group := router.Group("/ai")
	group.Use(guard.RequireAuthenticated())
	group.POST("/recommend", module.handleRecommend)
	group.POST("/summary/:appid", module.handleSummary)

	return module, nil
}

// PurgeUserData removes the analysis record of a withdrawn account.
func (m *Module) PurgeUserData(ctx context.Context, userID uint64) error {
	return m.recommend.PurgeUser(ctx, userID)
}

// AnalysisProfileField renders the stored analysis for the account profile
// payload. An account without a record renders as an explicit null.
func (m *Module) AnalysisProfileField(ctx context.Context, userID uint64) (interface{}, bool) {
	var record AIAnalysisLog
	err := m.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, true
		}
		log.Printf("analysis: load analysis for user %d failed: %v", userID, err)
		return nil, false
	}
	return gin.H{
		"gamer_type":      record.GamerType,
		"analysis_text":   record.AnalysisText,
		"recommendations": record.Recommendations,
	}, true
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("analysis: invalid %s %q", key, raw)
	}
	return value, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("analysis: invalid %s %q", key, raw)
	}
	return value, nil
}

type recommendRequest struct {
	ForceUpdate bool `json:"force_update"`
}

func (m *Module) handleRecommend(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	result, err := m.recommend.Analyze(c.Request.Context(), userID, req.ForceUpdate)
	if err != nil {
		if errors.Is(err, ErrNothingToAnalyze) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no games with playtime to analyze"})
			return
		}
		log.Printf("analysis: recommend for user %d failed: %v", userID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (m *Module) handleSummary(c *gin.Context) {
	appID, err := strconv.ParseInt(strings.TrimSpace(c.Param("appid")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app id"})
		return
	}

	summary, err := m.summary.Summarize(c.Request.Context(), appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		log.Printf("analysis: summary for app %d failed: %v", appID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
