package games

import (
	"context"
	"log"
	"strings"
	"time"

	"gamehub_back/steam"
)

const defaultStaleness = 24 * time.Hour

// AppDetailFetcher is the slice of the Steam client enrichment needs.
type AppDetailFetcher interface {
	FetchAppDetail(ctx context.Context, appID int64) (*steam.AppDetail, error)
}

// EnrichService lazily fills missing catalog metadata. Enrichment is
// best-effort by contract: fetch or storage failures are logged and swallowed,
// the existing record stays untouched and the caller never sees an error.
type EnrichService struct {
	store     *GameStore
	fetcher   AppDetailFetcher
	staleness time.Duration
}

// NewEnrichService builds an enrichment service. A non-positive staleness
// falls back to the 24h default window.
func NewEnrichService(store *GameStore, fetcher AppDetailFetcher, staleness time.Duration) *EnrichService {
	if staleness <= 0 {
		staleness = defaultStaleness
	}
	return &EnrichService{store: store, fetcher: fetcher, staleness: staleness}
}

func (s *EnrichService) needsRefresh(game *Game, now time.Time) bool {
	if game.Description == "" {
		return true
	}
	if game.RefreshedAt == nil {
		return true
	}
	return now.Sub(*game.RefreshedAt) > s.staleness
}

// Refresh re-fetches storefront data for the entry when its descriptive
// fields are empty or its last refresh fell outside the staleness window.
// A fresh, fully-populated entry triggers no outbound call and is returned
// byte-identical.
func (s *EnrichService) Refresh(ctx context.Context, game *Game) {
	if s == nil || s.fetcher == nil || game == nil {
		return
	}

	now := time.Now().UTC()
	if !s.needsRefresh(game, now) {
		return
	}

	detail, err := s.fetcher.FetchAppDetail(ctx, game.AppID)
	if err != nil {
		log.Printf("games: enrich app %d skipped: %v", game.AppID, err)
		return
	}

	game.Description = detail.Description
	game.Price = detail.Price
	game.Publisher = detail.Publisher
	game.Genres = strings.Join(detail.Genres, ", ")
	game.RefreshedAt = &now
	if detail.Title != "" {
		game.Title = detail.Title
	}
	if detail.HeaderImage != "" {
		game.HeaderImage = detail.HeaderImage
	}
	if detail.ReleaseDate != nil {
		game.ReleaseDate = detail.ReleaseDate
	}

	if err := s.store.Save(ctx, game); err != nil {
		log.Printf("games: persist enriched app %d failed: %v", game.AppID, err)
		return
	}
	if err := s.store.UpsertTags(ctx, game, detail.Categories); err != nil {
		log.Printf("games: upsert tags for app %d failed: %v", game.AppID, err)
	}
}
