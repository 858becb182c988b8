package games

import (
	"context"
	"errors"
	"testing"

	"gamehub_back/steam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOwnedGamesFetcher struct {
	games []steam.OwnedGame
	err   error
	calls int
}

func (f *fakeOwnedGamesFetcher) FetchOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error) {
	f.calls++
	return f.games, f.err
}

func TestSyncCreatesStubEntries(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeOwnedGamesFetcher{games: []steam.OwnedGame{
		{AppID: 730, Name: "Counter-Strike 2", PlaytimeForever: 1200, Playtime2Weeks: 30},
		{AppID: 570, Name: "Dota 2"},
	}}
	service := NewSyncService(store, fetcher)

	updated, err := service.Sync(context.Background(), 1, "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	game, err := store.FindByAppID(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, "Counter-Strike 2", game.Title)
	assert.Equal(t, "https://steamcdn-a.akamaihd.net/steam/apps/730/header.jpg", game.HeaderImage)
	assert.Empty(t, game.Description)

	entry, err := store.LibraryEntry(context.Background(), 1, 730)
	require.NoError(t, err)
	assert.Equal(t, 1200, entry.PlaytimeTotal)
	assert.Equal(t, 30, entry.PlaytimeRecent2Weeks)
}

func TestSyncRepeatedRunsStayUnique(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeOwnedGamesFetcher{games: []steam.OwnedGame{
		{AppID: 730, Name: "Counter-Strike 2", PlaytimeForever: 100},
	}}
	service := NewSyncService(store, fetcher)
	ctx := context.Background()

	_, err := service.Sync(ctx, 1, "76561198000000001")
	require.NoError(t, err)

	fetcher.games = []steam.OwnedGame{
		{AppID: 730, Name: "Counter-Strike 2", PlaytimeForever: 400, Playtime2Weeks: 50},
		{AppID: 570, Name: "Dota 2", PlaytimeForever: 10},
	}
	updated, err := service.Sync(ctx, 1, "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	var count int64
	require.NoError(t, store.db.Model(&UserGameLibrary{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	entry, err := store.LibraryEntry(ctx, 1, 730)
	require.NoError(t, err)
	assert.Equal(t, 400, entry.PlaytimeTotal)
	assert.Equal(t, 50, entry.PlaytimeRecent2Weeks)
}

func TestSyncDoesNotOverwriteEnrichedCatalog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	enriched := Game{AppID: 730, Title: "Counter-Strike 2", Description: "Tactical shooter.", HeaderImage: "https://img.example/real.jpg"}
	require.NoError(t, store.db.Create(&enriched).Error)

	fetcher := &fakeOwnedGamesFetcher{games: []steam.OwnedGame{
		{AppID: 730, Name: "counter strike two", PlaytimeForever: 5},
	}}
	_, err := NewSyncService(store, fetcher).Sync(ctx, 1, "76561198000000001")
	require.NoError(t, err)

	game, err := store.FindByAppID(ctx, 730)
	require.NoError(t, err)
	assert.Equal(t, "Counter-Strike 2", game.Title)
	assert.Equal(t, "Tactical shooter.", game.Description)
	assert.Equal(t, "https://img.example/real.jpg", game.HeaderImage)
}

func TestSyncFetchFailure(t *testing.T) {
	store := openTestStore(t)
	fetcher := &fakeOwnedGamesFetcher{err: errors.New("upstream down")}
	service := NewSyncService(store, fetcher)

	updated, err := service.Sync(context.Background(), 1, "76561198000000001")
	assert.Error(t, err)
	assert.Zero(t, updated)

	var count int64
	require.NoError(t, store.db.Model(&UserGameLibrary{}).Count(&count).Error)
	assert.Zero(t, count)
}
