package games

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrUnknownSortKey rejects sort parameters outside the allowlist.
var ErrUnknownSortKey = errors.New("games: unknown sort key")

var sortColumns = map[string]string{
	"price":  "price ASC",
	"-price": "price DESC",
	"title":  "title ASC",
	"-title": "title DESC",
}

// GameStore provides data access helpers backed by GORM.
type GameStore struct {
	db *gorm.DB
}

// NewGameStore wraps a gorm handle.
func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

// FindByAppID loads a catalog entry by external id.
func (s *GameStore) FindByAppID(ctx context.Context, appID int64) (*Game, error) {
	var game Game
	if err := s.db.WithContext(ctx).Where("app_id = ?", appID).First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// GetOrCreate loads the entry for an app id, creating a stub row with title
// and placeholder image on first reference. Pre-existing richer data is never
// overwritten here. The second return value reports whether a row was created.
func (s *GameStore) GetOrCreate(ctx context.Context, appID int64, title, headerImage string) (*Game, bool, error) {
	var game Game
	err := s.db.WithContext(ctx).Where("app_id = ?", appID).First(&game).Error
	if err == nil {
		return &game, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	game = Game{AppID: appID, Title: title, HeaderImage: headerImage}
	if err := s.db.WithContext(ctx).Create(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing Game
			if readErr := s.db.WithContext(ctx).Where("app_id = ?", appID).First(&existing).Error; readErr == nil {
				return &existing, false, nil
			}
		}
		return nil, false, err
	}
	return &game, true, nil
}

// ExistingAppIDs returns the set of app ids already in the catalog.
func (s *GameStore) ExistingAppIDs(ctx context.Context) (map[int64]struct{}, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).Model(&Game{}).Pluck("app_id", &ids).Error; err != nil {
		return nil, err
	}
	existing := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// CreateBatch bulk-inserts catalog stubs. A nil or empty batch is a no-op.
func (s *GameStore) CreateBatch(ctx context.Context, games []Game) error {
	if len(games) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(games, 5000).Error
}

// Save persists the mutable catalog fields of an enriched entry.
func (s *GameStore) Save(ctx context.Context, game *Game) error {
	if game == nil {
		return errors.New("games: nil game")
	}
	return s.db.WithContext(ctx).Model(&Game{}).Where("app_id = ?", game.AppID).
		Updates(map[string]interface{}{
			"title":        game.Title,
			"description":  game.Description,
			"price":        game.Price,
			"publisher":    game.Publisher,
			"header_image": game.HeaderImage,
			"release_date": game.ReleaseDate,
			"genres":       game.Genres,
			"refreshed_at": game.RefreshedAt,
		}).Error
}

// UpsertTags get-or-creates the named tags and attaches them to the game.
func (s *GameStore) UpsertTags(ctx context.Context, game *Game, names []string) error {
	if game == nil || len(names) == 0 {
		return nil
	}
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var tag Tag
		err := s.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = Tag{Name: name}
			err = s.db.WithContext(ctx).Create(&tag).Error
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				err = s.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
			}
		}
		if err != nil {
			return fmt.Errorf("games: upsert tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}
	return s.db.WithContext(ctx).Model(game).Association("Tags").Replace(tags)
}

// MatchByTitle resolves a title against the catalog, exact match first and
// case-insensitive substring second. gorm.ErrRecordNotFound when neither hits.
func (s *GameStore) MatchByTitle(ctx context.Context, title string) (*Game, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var game Game
	err := s.db.WithContext(ctx).Where("LOWER(title) = LOWER(?)", title).First(&game).Error
	if err == nil {
		return &game, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("LOWER(title) LIKE LOWER(?)", "%"+title+"%").
		Order("app_id ASC").
		First(&game).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// ListFilter carries the catalog listing parameters.
type ListFilter struct {
	Query    string
	PriceMin *int
	PriceMax *int
	Genre    string
	Sort     string
	Offset   int
	Limit    int
}

// List returns a filtered catalog page plus the total match count.
func (s *GameStore) List(ctx context.Context, filter ListFilter) ([]Game, int64, error) {
	tx := s.db.WithContext(ctx).Model(&Game{})

	if q := strings.TrimSpace(filter.Query); q != "" {
		tx = tx.Where("LOWER(title) LIKE LOWER(?)", "%"+q+"%")
	}
	if filter.PriceMin != nil {
		tx = tx.Where("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		tx = tx.Where("price <= ?", *filter.PriceMax)
	}
	if genre := strings.TrimSpace(filter.Genre); genre != "" {
		tx = tx.Where("LOWER(genres) LIKE LOWER(?)", "%"+genre+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "title ASC"
	if filter.Sort != "" {
		mapped, ok := sortColumns[filter.Sort]
		if !ok {
			return nil, 0, ErrUnknownSortKey
		}
		order = mapped
	}

	var items []Game
	if err := tx.Order(order).Offset(filter.Offset).Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Search returns up to limit title matches and the total count before the cut.
func (s *GameStore) Search(ctx context.Context, query string, limit int) ([]Game, int64, error) {
	tx := s.db.WithContext(ctx).Model(&Game{}).
		Where("LOWER(title) LIKE LOWER(?)", "%"+strings.TrimSpace(query)+"%")

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var items []Game
	if err := tx.Order("title ASC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpsertLibrary writes the reported playtime for one (user, game) pair,
// updating the existing row or inserting a fresh one.
func (s *GameStore) UpsertLibrary(ctx context.Context, userID uint64, appID int64, playtimeTotal, playtimeRecent int) error {
	updates := map[string]interface{}{
		"playtime_total":         playtimeTotal,
		"playtime_recent_2weeks": playtimeRecent,
	}

	var existing UserGameLibrary
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_app_id = ?", userID, appID).
		First(&existing).Error
	if err == nil {
		return s.db.WithContext(ctx).Model(&existing).Updates(updates).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	entry := UserGameLibrary{
		UserID:               userID,
		GameAppID:            appID,
		PlaytimeTotal:        playtimeTotal,
		PlaytimeRecent2Weeks: playtimeRecent,
	}
	if createErr := s.db.WithContext(ctx).Create(&entry).Error; createErr != nil {
		// Lost a race with a concurrent sync; the unique index holds and
		// last write wins.
		result := s.db.WithContext(ctx).Model(&UserGameLibrary{}).
			Where("user_id = ? AND game_app_id = ?", userID, appID).
			Updates(updates)
		if result.Error != nil || result.RowsAffected == 0 {
			return createErr
		}
	}
	return nil
}

// LibraryFor returns the full library of a user ordered by total playtime.
func (s *GameStore) LibraryFor(ctx context.Context, userID uint64) ([]UserGameLibrary, error) {
	var entries []UserGameLibrary
	err := s.db.WithContext(ctx).
		Preload("Game").
		Where("user_id = ?", userID).
		Order("playtime_total DESC").
		Find(&entries).Error
	return entries, err
}

// LibraryEntry loads a single ownership row, if any.
func (s *GameStore) LibraryEntry(ctx context.Context, userID uint64, appID int64) (*UserGameLibrary, error) {
	var entry UserGameLibrary
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_app_id = ?", userID, appID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// PositivePlaytime returns the library rows with any recorded playtime.
func (s *GameStore) PositivePlaytime(ctx context.Context, userID uint64) ([]UserGameLibrary, error) {
	var entries []UserGameLibrary
	err := s.db.WithContext(ctx).
		Preload("Game").
		Where("user_id = ? AND playtime_total > 0", userID).
		Order("playtime_total DESC").
		Find(&entries).Error
	return entries, err
}

// OwnedAppIDs returns the set of app ids in a user's library.
func (s *GameStore) OwnedAppIDs(ctx context.Context, userID uint64) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&UserGameLibrary{}).
		Where("user_id = ?", userID).
		Pluck("game_app_id", &ids).Error
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

// EnsureFavorite get-or-creates the favorite slot for an account.
func (s *GameStore) EnsureFavorite(ctx context.Context, userID uint64) (*UserFavoriteGame, error) {
	var favorite UserFavoriteGame
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&favorite).Error
	if err == nil {
		return &favorite, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	favorite = UserFavoriteGame{UserID: userID}
	if err := s.db.WithContext(ctx).Create(&favorite).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing UserFavoriteGame
			if readErr := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; readErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &favorite, nil
}

// SetFavorite overwrites the favorite selection. A nil app id clears it.
func (s *GameStore) SetFavorite(ctx context.Context, userID uint64, appID *int64) error {
	if appID != nil {
		if _, err := s.FindByAppID(ctx, *appID); err != nil {
			return err
		}
	}
	if _, err := s.EnsureFavorite(ctx, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&UserFavoriteGame{}).
		Where("user_id = ?", userID).
		Update("game_app_id", appID).Error
}

// PurgeUser removes the library and favorite rows of a withdrawn account.
func (s *GameStore) PurgeUser(ctx context.Context, userID uint64) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserGameLibrary{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserFavoriteGame{}).Error
}
