package community

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"gamehub_back/accounts"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxTitleLength  = 100
)

// Module wires the article, comment and review endpoints.
type Module struct {
	db *gorm.DB
}

// RegisterRoutes bootstraps the community endpoints.
func RegisterRoutes(router *gin.Engine, guard *accounts.Guard) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Article{}, &Comment{}, &Review{}); err != nil {
		return nil, fmt.Errorf("community: migrate models: %w", err)
	}

	module := &Module{db: db}

	articles := router.Group("/articles")
	articles.GET("", module.handleArticleList)
	articles.GET("/:id", module.handleArticleDetail)
	articles.GET("/:id/comments", module.handleCommentList)

	securedArticles := articles.Group("")
	securedArticles.Use(guard.RequireAuthenticated())
	securedArticles.POST("", module.handleArticleCreate)
	securedArticles.PUT("/:id", module.handleArticleUpdate)
	securedArticles.DELETE("/:id", module.handleArticleDelete)
	securedArticles.POST("/:id/comments", module.handleCommentCreate)

	comments := router.Group("/comments")
	comments.Use(guard.RequireAuthenticated())
	comments.PUT("/:id", module.handleCommentUpdate)
	comments.DELETE("/:id", module.handleCommentDelete)

	router.GET("/games/:appid/reviews", module.handleReviewList)
	router.POST("/games/:appid/reviews", guard.RequireAuthenticated(), module.handleReviewCreate)

	reviews := router.Group("/reviews")
	reviews.Use(guard.RequireAuthenticated())
	reviews.PUT("/:id", module.handleReviewUpdate)
	reviews.DELETE("/:id", module.handleReviewDelete)

	return module, nil
}

// PurgeUserData removes every post, comment and review of a withdrawn account.
func (m *Module) PurgeUserData(ctx context.Context, userID uint64) error {
	tx := m.db.WithContext(ctx)
	if err := tx.Where("user_id = ?", userID).Delete(&Comment{}).Error; err != nil {
		return fmt.Errorf("community: purge comments: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Review{}).Error; err != nil {
		return fmt.Errorf("community: purge reviews: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Article{}).Error; err != nil {
		return fmt.Errorf("community: purge articles: %w", err)
	}
	return nil
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func parsePage(c *gin.Context) (offset, limit int, ok bool) {
	offset, limit = 0, defaultPageSize
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return 0, 0, false
		}
		offset = parsed
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, 0, false
		}
		limit = parsed
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	return offset, limit, true
}

type articleRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	GameAppID *int64 `json:"appid"`
}

func (r *articleRequest) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	if r.Title == "" {
		return "title is required"
	}
	if len([]rune(r.Title)) > maxTitleLength {
		return "title is too long"
	}
	if r.Content == "" {
		return "content is required"
	}
	return ""
}

func (m *Module) handleArticleList(c *gin.Context) {
	offset, limit, ok := parsePage(c)
	if !ok {
		return
	}

	tx := m.db.WithContext(c.Request.Context()).Model(&Article{})
	if raw := strings.TrimSpace(c.Query("appid")); raw != "" {
		appID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid appid"})
			return
		}
		tx = tx.Where("game_app_id = ?", appID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}

	var articles []Article
	if err := tx.Order("created_at DESC").Offset(offset).Limit(limit).Find(&articles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": articles})
}

func (m *Module) handleArticleDetail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var article Article
	if err := m.db.WithContext(c.Request.Context()).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func (m *Module) handleArticleCreate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	article := Article{
		UserID:    userID,
		GameAppID: req.GameAppID,
		Title:     req.Title,
		Content:   req.Content,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create article"})
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (m *Module) handleArticleUpdate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req articleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var article Article
	if err := m.db.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}
	if article.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	article.Title = req.Title
	article.Content = req.Content
	article.GameAppID = req.GameAppID
	if err := m.db.WithContext(ctx).Save(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update article"})
		return
	}
	c.JSON(http.StatusOK, article)
}

func (m *Module) handleArticleDelete(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var article Article
	if err := m.db.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}
	if article.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	// Replies go with the post.
	if err := m.db.WithContext(ctx).Where("article_id = ?", id).Delete(&Comment{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete article"})
		return
	}
	if err := m.db.WithContext(ctx).Delete(&article).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete article"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "article deleted"})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (m *Module) handleCommentList(c *gin.Context) {
	articleID, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).First(&Article{}, articleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}

	var comments []Comment
	if err := m.db.WithContext(ctx).Where("article_id = ?", articleID).Order("created_at ASC").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list comments"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (m *Module) handleCommentCreate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	articleID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).First(&Article{}, articleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}

	comment := Comment{ArticleID: articleID, UserID: userID, Content: strings.TrimSpace(req.Content)}
	if err := m.db.WithContext(ctx).Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create comment"})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (m *Module) handleCommentUpdate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	ctx := c.Request.Context()
	var comment Comment
	if err := m.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		return
	}
	if comment.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	comment.Content = strings.TrimSpace(req.Content)
	if err := m.db.WithContext(ctx).Save(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update comment"})
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (m *Module) handleCommentDelete(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var comment Comment
	if err := m.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		return
	}
	if comment.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	if err := m.db.WithContext(ctx).Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

type reviewRequest struct {
	RatingFun          int    `json:"rating_fun"`
	RatingStory        int    `json:"rating_story"`
	RatingControl      int    `json:"rating_control"`
	RatingSound        int    `json:"rating_sound"`
	RatingOptimization int    `json:"rating_optimization"`
	Content            string `json:"content"`
}

func (r *reviewRequest) validate() string {
	for _, rating := range []int{r.RatingFun, r.RatingStory, r.RatingControl, r.RatingSound, r.RatingOptimization} {
		if rating < 1 || rating > 5 {
			return "ratings must be between 1 and 5"
		}
	}
	return ""
}

func (r *reviewRequest) apply(review *Review) {
	review.RatingFun = r.RatingFun
	review.RatingStory = r.RatingStory
	review.RatingControl = r.RatingControl
	review.RatingSound = r.RatingSound
	review.RatingOptimization = r.RatingOptimization
	review.Content = strings.TrimSpace(r.Content)
}

func parseAppID(c *gin.Context) (int64, bool) {
	appID, err := strconv.ParseInt(strings.TrimSpace(c.Param("appid")), 10, 64)
	if err != nil || appID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app id"})
		return 0, false
	}
	return appID, true
}

func (m *Module) handleReviewList(c *gin.Context) {
	appID, ok := parseAppID(c)
	if !ok {
		return
	}

	var reviews []Review
	if err := m.db.WithContext(c.Request.Context()).
		Where("game_app_id = ?", appID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reviews"})
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (m *Module) handleReviewCreate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	appID, ok := parseAppID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var existing Review
	err := m.db.WithContext(ctx).Where("user_id = ? AND game_app_id = ?", userID, appID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "review already exists", "review_id": existing.ID})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create review"})
		return
	}

	review := Review{UserID: userID, GameAppID: appID}
	req.apply(&review)
	if err := m.db.WithContext(ctx).Create(&review).Error; err != nil {
		// Concurrent creates hit the unique index instead of the read above.
		c.JSON(http.StatusConflict, gin.H{"error": "review already exists"})
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (m *Module) handleReviewUpdate(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var review Review
	if err := m.db.WithContext(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load review"})
		return
	}
	if review.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	req.apply(&review)
	if err := m.db.WithContext(ctx).Save(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update review"})
		return
	}
	c.JSON(http.StatusOK, review)
}

func (m *Module) handleReviewDelete(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var review Review
	if err := m.db.WithContext(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load review"})
		return
	}
	if review.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	}

	if err := m.db.WithContext(ctx).Delete(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete review"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "review deleted"})
}
