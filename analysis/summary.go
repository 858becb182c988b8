package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gamehub_back/llm"
	"gorm.io/gorm"
)

const (
	defaultSummaryTTL        = 30 * time.Minute
	defaultSummaryMaxReviews = 25

	noReviewSummaryText = "Not enough reviews were available to build a summary."
)

// ReviewFetcher is the slice of the Steam client summarization needs.
type ReviewFetcher interface {
	FetchReviews(ctx context.Context, appID int64, max int) ([]string, error)
}

// SummaryService keeps one AI review digest per catalog entry. Model and
// upstream failures are recorded as a FAILED row and returned to the caller;
// only storage errors and unknown games surface as errors.
type SummaryService struct {
	db         *gorm.DB
	catalog    GameCatalog
	generator  TextGenerator
	reviews    ReviewFetcher
	cache      *summaryCache
	ttl        time.Duration
	maxReviews int
}

// NewSummaryService builds a summary service. Non-positive ttl or review cap
// fall back to the defaults (30m, 25 reviews). cache may be nil.
func NewSummaryService(db *gorm.DB, catalog GameCatalog, generator TextGenerator, reviews ReviewFetcher, cache *summaryCache, ttl time.Duration, maxReviews int) *SummaryService {
	if ttl <= 0 {
		ttl = defaultSummaryTTL
	}
	if maxReviews <= 0 {
		maxReviews = defaultSummaryMaxReviews
	}
	return &SummaryService{
		db:         db,
		catalog:    catalog,
		generator:  generator,
		reviews:    reviews,
		cache:      cache,
		ttl:        ttl,
		maxReviews: maxReviews,
	}
}

const summarySystemPrompt = "You are a games journalist. Condense the player reviews you are given into " +
	"one balanced paragraph covering what players praise and what they complain about. " +
	`Answer with nothing but a JSON object of this shape: {"summary": "the paragraph"}`

type summaryModelPayload struct {
	Summary string `json:"summary"`
}

func (s *SummaryService) fresh(summary *ReviewSummary, now time.Time) bool {
	return summary.Status == SummaryStatusCompleted && now.Sub(summary.LastUpdatedAt) < s.ttl
}

// Summarize returns the review digest for a game, rebuilding it when the
// stored one is missing, failed or older than the freshness window.
func (s *SummaryService) Summarize(ctx context.Context, appID int64) (*ReviewSummary, error) {
	game, err := s.catalog.FindByAppID(ctx, appID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if cached, ok := s.cache.get(ctx, appID); ok && s.fresh(cached, now) {
		return cached, nil
	}

	summary, err := s.loadOrCreate(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("analysis: load summary row: %w", err)
	}
	if s.fresh(summary, now) {
		s.cache.store(ctx, summary)
		return summary, nil
	}

	summary.Status = SummaryStatusProcessing
	if err := s.save(ctx, summary); err != nil {
		return nil, fmt.Errorf("analysis: mark summary processing: %w", err)
	}
	s.cache.invalidate(ctx, appID)

	texts, err := s.reviews.FetchReviews(ctx, appID, s.maxReviews)
	if err != nil {
		log.Printf("analysis: fetch reviews for app %d failed: %v", appID, err)
		return s.fail(ctx, summary, now)
	}
	if len(texts) == 0 {
		summary.SummaryText = noReviewSummaryText
		return s.fail(ctx, summary, now)
	}

	userPrompt := fmt.Sprintf("Game: %s\nReviews:\n- %s", game.Title, strings.Join(texts, "\n- "))
	result, err := s.generator.Generate(ctx, summarySystemPrompt, userPrompt)
	if err != nil {
		log.Printf("analysis: summarize app %d failed: %v", appID, err)
		return s.fail(ctx, summary, now)
	}

	raw, ok := llm.ExtractJSON(result.Content)
	if !ok {
		log.Printf("analysis: summary for app %d is not valid JSON", appID)
		return s.fail(ctx, summary, now)
	}
	var payload summaryModelPayload
	if err := json.Unmarshal(raw, &payload); err != nil || strings.TrimSpace(payload.Summary) == "" {
		log.Printf("analysis: summary for app %d has no summary field", appID)
		return s.fail(ctx, summary, now)
	}

	summary.Status = SummaryStatusCompleted
	summary.SummaryText = strings.TrimSpace(payload.Summary)
	if result.Usage != nil {
		summary.TokensUsed = result.Usage.TotalTokens
	}
	summary.LastUpdatedAt = now
	if err := s.save(ctx, summary); err != nil {
		return nil, fmt.Errorf("analysis: persist summary: %w", err)
	}
	s.cache.store(ctx, summary)
	return summary, nil
}

// fail records a failed run. The row keeps any placeholder text already set
// and its timestamp marks the attempt; only COMPLETED rows are served from
// the freshness window, so the next request retries.
func (s *SummaryService) fail(ctx context.Context, summary *ReviewSummary, now time.Time) (*ReviewSummary, error) {
	summary.Status = SummaryStatusFailed
	summary.LastUpdatedAt = now
	if err := s.save(ctx, summary); err != nil {
		return nil, fmt.Errorf("analysis: persist failed summary: %w", err)
	}
	return summary, nil
}

func (s *SummaryService) loadOrCreate(ctx context.Context, appID int64) (*ReviewSummary, error) {
	var summary ReviewSummary
	err := s.db.WithContext(ctx).Where("game_app_id = ?", appID).First(&summary).Error
	if err == nil {
		return &summary, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	summary = ReviewSummary{GameAppID: appID, Status: SummaryStatusPending}
	if err := s.db.WithContext(ctx).Create(&summary).Error; err != nil {
		// A concurrent request may have created the row first.
		var existing ReviewSummary
		if readErr := s.db.WithContext(ctx).Where("game_app_id = ?", appID).First(&existing).Error; readErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (s *SummaryService) save(ctx context.Context, summary *ReviewSummary) error {
	return s.db.WithContext(ctx).Save(summary).Error
}
