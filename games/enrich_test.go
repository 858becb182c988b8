package games

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamehub_back/steam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppDetailFetcher struct {
	detail *steam.AppDetail
	err    error
	calls  int
}

func (f *fakeAppDetailFetcher) FetchAppDetail(ctx context.Context, appID int64) (*steam.AppDetail, error) {
	f.calls++
	return f.detail, f.err
}

func TestRefreshSkipsFreshEntry(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeAppDetailFetcher{}
	service := NewEnrichService(store, fetcher, 24*time.Hour)

	now := time.Now().UTC()
	game := &Game{AppID: 730, Title: "Counter-Strike 2", Description: "Tactical shooter.", RefreshedAt: &now}
	require.NoError(t, store.db.Create(game).Error)

	service.Refresh(context.Background(), game)

	assert.Zero(t, fetcher.calls)
	assert.Equal(t, "Tactical shooter.", game.Description)
}

func TestRefreshFillsEmptyEntry(t *testing.T) {
	store := openTestStore(t)
	release := time.Date(2023, 9, 27, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeAppDetailFetcher{detail: &steam.AppDetail{
		AppID:       730,
		Title:       "Counter-Strike 2",
		Description: "Tactical shooter.",
		Price:       15000,
		Publisher:   "Valve",
		HeaderImage: "https://img.example/730.jpg",
		ReleaseDate: &release,
		Genres:      []string{"Action", "FPS"},
		Categories:  []string{"Multi-player"},
	}}
	service := NewEnrichService(store, fetcher, 24*time.Hour)

	game := &Game{AppID: 730, Title: "stub"}
	require.NoError(t, store.db.Create(game).Error)

	service.Refresh(context.Background(), game)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "Counter-Strike 2", game.Title)
	assert.Equal(t, "Tactical shooter.", game.Description)
	assert.Equal(t, 15000, game.Price)
	assert.Equal(t, "Action, FPS", game.Genres)
	require.NotNil(t, game.RefreshedAt)

	stored, err := store.FindByAppID(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, "Valve", stored.Publisher)
	require.NotNil(t, stored.RefreshedAt)

	var tagCount int64
	require.NoError(t, store.db.Model(&Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(1), tagCount)
}

func TestRefreshRefetchesStaleEntry(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeAppDetailFetcher{detail: &steam.AppDetail{AppID: 730, Title: "Counter-Strike 2", Description: "fresh"}}
	service := NewEnrichService(store, fetcher, time.Hour)

	old := time.Now().UTC().Add(-2 * time.Hour)
	game := &Game{AppID: 730, Title: "Counter-Strike 2", Description: "stale", RefreshedAt: &old}
	require.NoError(t, store.db.Create(game).Error)

	service.Refresh(context.Background(), game)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "fresh", game.Description)
}

func TestRefreshFetchFailureLeavesEntryUntouched(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeAppDetailFetcher{err: errors.New("storefront down")}
	service := NewEnrichService(store, fetcher, 24*time.Hour)

	game := &Game{AppID: 730, Title: "stub"}
	require.NoError(t, store.db.Create(game).Error)

	service.Refresh(context.Background(), game)

	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, game.Description)
	assert.Nil(t, game.RefreshedAt)
}
