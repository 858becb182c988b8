package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamehub_back/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeReviewFetcher struct {
	texts []string
	err   error
	calls int
}

func (f *fakeReviewFetcher) FetchReviews(ctx context.Context, appID int64, max int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.texts) > max {
		return f.texts[:max], nil
	}
	return f.texts, nil
}

func TestSummarizeUnknownGame(t *testing.T) {
	db := openTestDB(t)
	service := NewSummaryService(db, catalogWith(nil), &fakeGenerator{}, &fakeReviewFetcher{}, nil, 0, 0)

	_, err := service.Summarize(context.Background(), 999999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSummarizeSuccess(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	reviews := &fakeReviewFetcher{texts: []string{"great gunplay", "toxic lobbies"}}
	generator := &fakeGenerator{
		content: `{"summary": "Players praise the gunplay but complain about toxicity."}`,
		usage:   &llm.Usage{TotalTokens: 321},
	}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, SummaryStatusCompleted, summary.Status)
	assert.Equal(t, "Players praise the gunplay but complain about toxicity.", summary.SummaryText)
	assert.Equal(t, 321, summary.TokensUsed)
	assert.False(t, summary.LastUpdatedAt.IsZero())

	var stored ReviewSummary
	require.NoError(t, db.Where("game_app_id = ?", 730).First(&stored).Error)
	assert.Equal(t, SummaryStatusCompleted, stored.Status)
}

func TestSummarizeFreshRecordShortCircuits(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	require.NoError(t, db.Create(&ReviewSummary{
		GameAppID:     730,
		Status:        SummaryStatusCompleted,
		SummaryText:   "already summarized",
		LastUpdatedAt: time.Now().UTC(),
	}).Error)

	reviews := &fakeReviewFetcher{texts: []string{"new review"}}
	generator := &fakeGenerator{content: `{"summary": "should not be used"}`}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, "already summarized", summary.SummaryText)
	assert.Zero(t, reviews.calls)
	assert.Zero(t, generator.calls)
}

func TestSummarizeStaleRecordIsRebuilt(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	require.NoError(t, db.Create(&ReviewSummary{
		GameAppID:     730,
		Status:        SummaryStatusCompleted,
		SummaryText:   "old take",
		LastUpdatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}).Error)

	reviews := &fakeReviewFetcher{texts: []string{"new review"}}
	generator := &fakeGenerator{content: `{"summary": "fresh take"}`}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, "fresh take", summary.SummaryText)
}

func TestSummarizeNoReviews(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	reviews := &fakeReviewFetcher{}
	generator := &fakeGenerator{content: `{"summary": "should not be used"}`}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, SummaryStatusFailed, summary.Status)
	assert.Equal(t, noReviewSummaryText, summary.SummaryText)
	assert.Zero(t, generator.calls)
}

func TestSummarizeModelFailureIsRecorded(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	reviews := &fakeReviewFetcher{texts: []string{"great"}}
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, SummaryStatusFailed, summary.Status)

	var stored ReviewSummary
	require.NoError(t, db.Where("game_app_id = ?", 730).First(&stored).Error)
	assert.Equal(t, SummaryStatusFailed, stored.Status)
}

func TestSummarizeNonJSONModelOutputIsRecorded(t *testing.T) {
	db := openTestDB(t)
	catalog := catalogWith(map[int64]string{730: "Counter-Strike 2"})
	reviews := &fakeReviewFetcher{texts: []string{"great"}}
	generator := &fakeGenerator{content: "here is some prose instead"}
	service := NewSummaryService(db, catalog, generator, reviews, nil, 30*time.Minute, 25)

	summary, err := service.Summarize(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, SummaryStatusFailed, summary.Status)
}
