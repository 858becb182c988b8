package games

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gamehub_back/steam"
)

const (
	defaultBootstrapPageSize = 50000
	defaultBootstrapPause    = time.Second
)

// AppListFetcher is the slice of the Steam client the bootstrap needs.
type AppListFetcher interface {
	FetchAppList(ctx context.Context, lastAppID int64, maxResults int) (*steam.AppListPage, error)
}

// BootstrapService seeds the catalog from the paginated store app list.
// Rows are created with app id and title only; the rest of the record is
// filled lazily by enrichment on first detail view. Entries already in the
// catalog are never touched.
type BootstrapService struct {
	store    *GameStore
	fetcher  AppListFetcher
	pageSize int
	pause    time.Duration
}

// NewBootstrapService builds a bootstrap service. Non-positive page size
// falls back to the 50000-per-page default; pause is the wait between pages.
func NewBootstrapService(store *GameStore, fetcher AppListFetcher, pageSize int, pause time.Duration) *BootstrapService {
	if pageSize <= 0 {
		pageSize = defaultBootstrapPageSize
	}
	if pause < 0 {
		pause = defaultBootstrapPause
	}
	return &BootstrapService{store: store, fetcher: fetcher, pageSize: pageSize, pause: pause}
}

// Seed walks the full app list from the zero cursor and inserts every game
// not yet in the catalog. It returns the number of rows created; on a
// mid-walk failure the count reflects the pages already committed.
func (s *BootstrapService) Seed(ctx context.Context) (int, error) {
	if s == nil || s.fetcher == nil {
		return 0, errors.New("games: bootstrap service not initialized")
	}

	existing, err := s.store.ExistingAppIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("games: load existing app ids: %w", err)
	}

	created := 0
	var lastAppID int64
	for {
		page, err := s.fetcher.FetchAppList(ctx, lastAppID, s.pageSize)
		if err != nil {
			return created, fmt.Errorf("games: fetch app list after %d: %w", lastAppID, err)
		}
		if len(page.Apps) == 0 {
			return created, nil
		}

		batch := make([]Game, 0, len(page.Apps))
		for _, app := range page.Apps {
			if app.Name == "" {
				continue
			}
			if _, ok := existing[app.AppID]; ok {
				continue
			}
			existing[app.AppID] = struct{}{}
			batch = append(batch, Game{AppID: app.AppID, Title: app.Name})
		}

		if err := s.store.CreateBatch(ctx, batch); err != nil {
			return created, fmt.Errorf("games: insert app list page after %d: %w", lastAppID, err)
		}
		created += len(batch)
		log.Printf("games: bootstrap stored %d entries (cursor %d)", len(batch), page.LastAppID)

		if !page.HaveMore {
			return created, nil
		}
		lastAppID = page.LastAppID

		if s.pause > 0 {
			select {
			case <-ctx.Done():
				return created, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}
}

// SeedCatalog opens the database and Steam client from the environment and
// runs a full catalog bootstrap. It backs the -seed-catalog startup mode.
func SeedCatalog(ctx context.Context) (int, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return 0, err
	}
	if err := db.AutoMigrate(&Game{}, &Tag{}); err != nil {
		return 0, fmt.Errorf("games: migrate models: %w", err)
	}

	steamClient, err := steam.NewClientFromEnv()
	if err != nil {
		return 0, err
	}

	service := NewBootstrapService(NewGameStore(db), steamClient, defaultBootstrapPageSize, defaultBootstrapPause)
	return service.Seed(ctx)
}
