package games

import (
	"context"
	"errors"
	"fmt"

	"gamehub_back/steam"
)

// OwnedGamesFetcher is the slice of the Steam client the sync service needs.
type OwnedGamesFetcher interface {
	FetchOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
}

// SyncService reconciles a user's remote-reported library against local
// storage. Every run is a full resync: each reported item get-or-creates its
// catalog entry and upserts the ownership row. The loop is not wrapped in a
// transaction; rows written before a mid-loop failure stay, which is safe
// because every write is an idempotent upsert keyed by (user, game).
type SyncService struct {
	store   *GameStore
	fetcher OwnedGamesFetcher
}

// NewSyncService builds a sync service over the given store and fetcher.
func NewSyncService(store *GameStore, fetcher OwnedGamesFetcher) *SyncService {
	return &SyncService{store: store, fetcher: fetcher}
}

func placeholderHeaderImage(appID int64) string {
	return fmt.Sprintf("https://steamcdn-a.akamaihd.net/steam/apps/%d/header.jpg", appID)
}

// Sync pulls the owned-items list for steamID and writes it under userID.
// It returns the number of rows written; on a mid-loop storage failure the
// count reflects the rows already committed.
func (s *SyncService) Sync(ctx context.Context, userID uint64, steamID string) (int, error) {
	if s == nil || s.fetcher == nil {
		return 0, errors.New("games: sync service not initialized")
	}

	items, err := s.fetcher.FetchOwnedGames(ctx, steamID)
	if err != nil {
		return 0, fmt.Errorf("games: fetch owned games: %w", err)
	}

	updated := 0
	for _, item := range items {
		if _, _, err := s.store.GetOrCreate(ctx, item.AppID, item.Name, placeholderHeaderImage(item.AppID)); err != nil {
			return updated, fmt.Errorf("games: get or create app %d: %w", item.AppID, err)
		}
		if err := s.store.UpsertLibrary(ctx, userID, item.AppID, item.PlaytimeForever, item.Playtime2Weeks); err != nil {
			return updated, fmt.Errorf("games: upsert library row for app %d: %w", item.AppID, err)
		}
		updated++
	}
	return updated, nil
}
