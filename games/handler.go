package games

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gamehub_back/accounts"
	"gamehub_back/steam"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LibrarySyncedHook runs after a successful full library resync.
type LibrarySyncedHook func(ctx context.Context, userID uint64)

// Module wires the catalog, library and favorite endpoints.
type Module struct {
	db          *gorm.DB
	store       *GameStore
	sync        *SyncService
	enrich      *EnrichService
	syncedHooks []LibrarySyncedHook
}

// RegisterRoutes bootstraps the game endpoints under /games.
func RegisterRoutes(router *gin.Engine, guard *accounts.Guard) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Game{}, &Tag{}, &UserGameLibrary{}, &UserFavoriteGame{}); err != nil {
		return nil, fmt.Errorf("games: migrate models: %w", err)
	}

	steamClient, err := steam.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	staleness := defaultStaleness
	if raw := strings.TrimSpace(os.Getenv("CATALOG_STALENESS")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("games: invalid CATALOG_STALENESS %q: %w", raw, err)
		}
		staleness = parsed
	}

	store := NewGameStore(db)
	module := &Module{
		db:     db,
		store:  store,
		sync:   NewSyncService(store, steamClient),
		enrich: NewEnrichService(store, steamClient, staleness),
	}

	group := router.Group("/games")
	group.GET("", module.handleList)
	group.GET("/search", module.handleSearch)
	group.GET("/:appid", guard.OptionalAuthenticated(), module.handleDetail)

	secured := group.Group("")
	secured.Use(guard.RequireAuthenticated())
	secured.GET("/library", module.handleLibraryList)
	secured.POST("/library", module.handleLibrarySync)
	secured.GET("/favorite", module.handleFavoriteGet)
	secured.PUT("/favorite", module.handleFavoriteSet)

	return module, nil
}

// Store exposes the catalog store to sibling modules.
func (m *Module) Store() *GameStore {
	if m == nil {
		return nil
	}
	return m.store
}

// OnLibrarySynced registers a hook fired after each successful resync.
func (m *Module) OnLibrarySynced(hook LibrarySyncedHook) {
	if m == nil || hook == nil {
		return
	}
	m.syncedHooks = append(m.syncedHooks, hook)
}

// EnsureFavoriteSelection creates the empty favorite slot for a new account.
func (m *Module) EnsureFavoriteSelection(ctx context.Context, userID uint64) {
	if m == nil || m.store == nil {
		return
	}
	if _, err := m.store.EnsureFavorite(ctx, userID); err != nil {
		log.Printf("games: create favorite slot for user %d failed: %v", userID, err)
	}
}

// FavoriteProfileField renders the favorite selection for the account
// profile payload. An empty slot renders as an explicit null.
func (m *Module) FavoriteProfileField(ctx context.Context, userID uint64) (interface{}, bool) {
	favorite, err := m.store.EnsureFavorite(ctx, userID)
	if err != nil {
		log.Printf("games: load favorite for user %d failed: %v", userID, err)
		return nil, false
	}
	if favorite.GameAppID == nil {
		return nil, true
	}
	game, err := m.store.FindByAppID(ctx, *favorite.GameAppID)
	if err != nil {
		log.Printf("games: load favorite game %d failed: %v", *favorite.GameAppID, err)
		return nil, true
	}
	return gin.H{
		"appid":        game.AppID,
		"title":        game.Title,
		"header_image": game.HeaderImage,
	}, true
}

// PurgeUserData removes the library and favorite rows of a withdrawn account.
func (m *Module) PurgeUserData(ctx context.Context, userID uint64) error {
	return m.store.PurgeUser(ctx, userID)
}

func steamStoreURL(appID int64) string {
	return fmt.Sprintf("https://store.steampowered.com/app/%d/", appID)
}

func gamePayload(game *Game) gin.H {
	return gin.H{
		"appid":        game.AppID,
		"title":        game.Title,
		"description":  game.Description,
		"price":        game.Price,
		"publisher":    game.Publisher,
		"header_image": game.HeaderImage,
		"release_date": game.ReleaseDate,
		"genres":       game.Genres,
		"steam_url":    steamStoreURL(game.AppID),
	}
}

func gameSummaryPayload(game *Game) gin.H {
	return gin.H{
		"appid":        game.AppID,
		"title":        game.Title,
		"header_image": game.HeaderImage,
		"price":        game.Price,
	}
}

func parseOptionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (m *Module) handleList(c *gin.Context) {
	priceMin, err := parseOptionalInt(c.Query("price_min"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price_min"})
		return
	}
	priceMax, err := parseOptionalInt(c.Query("price_max"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price_max"})
		return
	}

	offset := 0
	if parsed, err := parseOptionalInt(c.Query("offset")); err != nil || (parsed != nil && *parsed < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	} else if parsed != nil {
		offset = *parsed
	}

	limit := defaultPageSize
	if parsed, err := parseOptionalInt(c.Query("limit")); err != nil || (parsed != nil && *parsed < 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	} else if parsed != nil {
		limit = *parsed
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	filter := ListFilter{
		Query:    c.Query("q"),
		PriceMin: priceMin,
		PriceMax: priceMax,
		Genre:    c.Query("genre"),
		Sort:     strings.TrimSpace(c.Query("sort")),
		Offset:   offset,
		Limit:    limit,
	}

	items, total, err := m.store.List(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrUnknownSortKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sort key"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
		return
	}

	results := make([]gin.H, 0, len(items))
	for i := range items {
		results = append(results, gameSummaryPayload(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": results})
}

func (m *Module) handleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query is required"})
		return
	}

	limit := 0
	if parsed, err := parseOptionalInt(c.Query("limit")); err == nil && parsed != nil && *parsed > 0 {
		// A non-numeric limit is ignored and the full result set returned.
		limit = *parsed
	}

	items, total, err := m.store.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search games"})
		return
	}

	results := make([]gin.H, 0, len(items))
	for i := range items {
		results = append(results, gameSummaryPayload(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": results})
}

func (m *Module) handleDetail(c *gin.Context) {
	appID, err := strconv.ParseInt(strings.TrimSpace(c.Param("appid")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app id"})
		return
	}

	ctx := c.Request.Context()
	game, err := m.store.FindByAppID(ctx, appID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}

	m.enrich.Refresh(ctx, game)

	playtime := 0
	if userID := accounts.CurrentUserID(c); userID != 0 {
		if entry, err := m.store.LibraryEntry(ctx, userID, appID); err == nil {
			playtime = entry.PlaytimeTotal
		}
	}

	payload := gamePayload(game)
	payload["playtime_total"] = playtime
	c.JSON(http.StatusOK, payload)
}

func (m *Module) handleLibraryList(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	entries, err := m.store.LibraryFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load library"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (m *Module) handleLibrarySync(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	steamID := accounts.CurrentSteamID(c)
	if userID == 0 || steamID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx := c.Request.Context()
	updated, err := m.sync.Sync(ctx, userID, steamID)
	if err != nil {
		log.Printf("games: library sync for user %d failed after %d rows: %v", userID, updated, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "library sync failed", "updated_count": updated})
		return
	}

	for _, hook := range m.syncedHooks {
		hook(ctx, userID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "sync completed", "updated_count": updated})
}

func (m *Module) handleFavoriteGet(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx := c.Request.Context()
	favorite, err := m.store.EnsureFavorite(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load favorite"})
		return
	}

	var gameField interface{}
	if favorite.GameAppID != nil {
		if game, err := m.store.FindByAppID(ctx, *favorite.GameAppID); err == nil {
			gameField = gamePayload(game)
		}
	}
	c.JSON(http.StatusOK, gin.H{"game": gameField, "updated_at": favorite.UpdatedAt})
}

type favoriteRequest struct {
	AppID *int64 `json:"appid"`
}

func (m *Module) handleFavoriteSet(c *gin.Context) {
	userID := accounts.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	if err := m.store.SetFavorite(c.Request.Context(), userID, req.AppID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update favorite"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "favorite updated", "appid": req.AppID})
}
