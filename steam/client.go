package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultStoreBaseURL = "https://store.steampowered.com"
	defaultAPIBaseURL   = "https://api.steampowered.com"
	defaultLanguage     = "koreana"
	defaultCountryCode  = "kr"
	defaultTimeout      = 5 * time.Second
)

// ErrAppNotFound is returned when the storefront reports no data for an app id.
var ErrAppNotFound = errors.New("steam: app not found")

// Config carries the settings required to talk to the Steam web APIs.
// It is built once at startup and handed to NewClient; no field is read
// from the environment after construction.
type Config struct {
	APIKey       string
	StoreBaseURL string
	APIBaseURL   string
	Language     string
	CountryCode  string
	Timeout      time.Duration
}

// Client wraps the HTTP calls to the Steam storefront and web APIs.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("steam: API key is required")
	}
	if cfg.StoreBaseURL == "" {
		cfg.StoreBaseURL = defaultStoreBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	cfg.StoreBaseURL = strings.TrimRight(cfg.StoreBaseURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = defaultCountryCode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - STEAM_API_KEY: required web API key
//   - STEAM_STORE_BASE_URL / STEAM_API_BASE_URL: optional endpoint overrides
func NewClientFromEnv() (*Client, error) {
	return NewClient(Config{
		APIKey:       strings.TrimSpace(os.Getenv("STEAM_API_KEY")),
		StoreBaseURL: strings.TrimSpace(os.Getenv("STEAM_STORE_BASE_URL")),
		APIBaseURL:   strings.TrimSpace(os.Getenv("STEAM_API_BASE_URL")),
	})
}

// AppDetail is the normalized storefront record for a single app.
type AppDetail struct {
	AppID       int64
	Title       string
	Description string
	Price       int // minor currency units
	Publisher   string
	HeaderImage string
	ReleaseDate *time.Time
	Genres      []string
	Categories  []string
}

type appDetailPayload struct {
	Success bool `json:"success"`
	Data    struct {
		Name             string   `json:"name"`
		ShortDescription string   `json:"short_description"`
		HeaderImage      string   `json:"header_image"`
		Publishers       []string `json:"publishers"`
		PriceOverview    *struct {
			Final int `json:"final"`
		} `json:"price_overview"`
		ReleaseDate struct {
			Date string `json:"date"`
		} `json:"release_date"`
		Genres []struct {
			Description string `json:"description"`
		} `json:"genres"`
		Categories []struct {
			Description string `json:"description"`
		} `json:"categories"`
	} `json:"data"`
}

// releaseDateLayouts covers the formats the storefront has been observed to emit.
var releaseDateLayouts = []string{
	"2006년 1월 2일",
	"2 Jan, 2006",
	"2006-01-02",
}

func parseReleaseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range releaseDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}
	return nil
}

// FetchAppDetail loads the storefront record for the given app id.
// A provider-reported miss yields ErrAppNotFound.
func (c *Client) FetchAppDetail(ctx context.Context, appID int64) (*AppDetail, error) {
	if c == nil {
		return nil, errors.New("steam: client is nil")
	}

	params := url.Values{}
	params.Set("appids", strconv.FormatInt(appID, 10))
	params.Set("l", c.cfg.Language)
	params.Set("cc", c.cfg.CountryCode)

	var envelope map[string]appDetailPayload
	if err := c.getJSON(ctx, c.cfg.StoreBaseURL+"/api/appdetails", params, &envelope); err != nil {
		return nil, err
	}

	payload, ok := envelope[strconv.FormatInt(appID, 10)]
	if !ok || !payload.Success {
		return nil, ErrAppNotFound
	}

	detail := &AppDetail{
		AppID:       appID,
		Title:       payload.Data.Name,
		Description: payload.Data.ShortDescription,
		HeaderImage: payload.Data.HeaderImage,
		ReleaseDate: parseReleaseDate(payload.Data.ReleaseDate.Date),
	}
	if payload.Data.PriceOverview != nil {
		detail.Price = payload.Data.PriceOverview.Final
	}
	if len(payload.Data.Publishers) > 0 {
		detail.Publisher = payload.Data.Publishers[0]
	}
	for _, genre := range payload.Data.Genres {
		if genre.Description != "" {
			detail.Genres = append(detail.Genres, genre.Description)
		}
	}
	for _, category := range payload.Data.Categories {
		if category.Description != "" {
			detail.Categories = append(detail.Categories, category.Description)
		}
	}

	return detail, nil
}

// OwnedGame is one entry of a user's remote-reported library.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
}

type ownedGamesResponse struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

// FetchOwnedGames returns the full owned-items list for a Steam account.
func (c *Client) FetchOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	if c == nil {
		return nil, errors.New("steam: client is nil")
	}
	if strings.TrimSpace(steamID) == "" {
		return nil, errors.New("steam: steam id is required")
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("steamid", steamID)
	params.Set("format", "json")
	params.Set("include_appinfo", "1")

	var decoded ownedGamesResponse
	if err := c.getJSON(ctx, c.cfg.APIBaseURL+"/IPlayerService/GetOwnedGames/v0001/", params, &decoded); err != nil {
		return nil, err
	}

	return decoded.Response.Games, nil
}

// AppListEntry is one row of the paginated store app list.
type AppListEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

// AppListPage is one page of the store app list plus its pagination cursor.
type AppListPage struct {
	Apps      []AppListEntry
	LastAppID int64
	HaveMore  bool
}

type appListResponse struct {
	Response struct {
		Apps            []AppListEntry `json:"apps"`
		HaveMoreResults bool           `json:"have_more_results"`
		LastAppID       int64          `json:"last_appid"`
	} `json:"response"`
}

// FetchAppList loads one page of the games-only store app list starting after
// lastAppID. DLC and software entries are excluded upstream.
func (c *Client) FetchAppList(ctx context.Context, lastAppID int64, maxResults int) (*AppListPage, error) {
	if c == nil {
		return nil, errors.New("steam: client is nil")
	}
	if maxResults <= 0 {
		maxResults = 50000
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("last_appid", strconv.FormatInt(lastAppID, 10))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("include_games", "true")
	params.Set("include_dlc", "false")
	params.Set("include_software", "false")

	var decoded appListResponse
	if err := c.getJSON(ctx, c.cfg.APIBaseURL+"/IStoreService/GetAppList/v1/", params, &decoded); err != nil {
		return nil, err
	}

	page := &AppListPage{
		Apps:      decoded.Response.Apps,
		LastAppID: decoded.Response.LastAppID,
		HaveMore:  decoded.Response.HaveMoreResults,
	}
	// Older responses omit the cursor; fall back to the last row.
	if page.LastAppID == 0 && len(page.Apps) > 0 {
		page.LastAppID = page.Apps[len(page.Apps)-1].AppID
	}
	return page, nil
}

// PlayerSummary holds the public profile fields consumed at login time.
type PlayerSummary struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarFull  string `json:"avatarfull"`
}

type playerSummariesResponse struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

// FetchPlayerSummary loads the profile of a single Steam account.
func (c *Client) FetchPlayerSummary(ctx context.Context, steamID string) (*PlayerSummary, error) {
	if c == nil {
		return nil, errors.New("steam: client is nil")
	}
	if strings.TrimSpace(steamID) == "" {
		return nil, errors.New("steam: steam id is required")
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("steamids", steamID)

	var decoded playerSummariesResponse
	if err := c.getJSON(ctx, c.cfg.APIBaseURL+"/ISteamUser/GetPlayerSummaries/v0002/", params, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Response.Players) == 0 {
		return nil, fmt.Errorf("steam: no player found for id %s", steamID)
	}
	player := decoded.Response.Players[0]
	return &player, nil
}

type appReviewsResponse struct {
	Reviews []struct {
		Review string `json:"review"`
	} `json:"reviews"`
}

// FetchReviews returns up to max non-empty review texts for the given app.
func (c *Client) FetchReviews(ctx context.Context, appID int64, max int) ([]string, error) {
	if c == nil {
		return nil, errors.New("steam: client is nil")
	}
	if max <= 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("json", "1")
	params.Set("language", "korean")
	params.Set("num_per_page", "30")
	params.Set("purchase_type", "all")

	endpoint := fmt.Sprintf("%s/appreviews/%d", c.cfg.StoreBaseURL, appID)
	var decoded appReviewsResponse
	if err := c.getJSON(ctx, endpoint, params, &decoded); err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(decoded.Reviews))
	for _, entry := range decoded.Reviews {
		if strings.TrimSpace(entry.Review) == "" {
			continue
		}
		texts = append(texts, entry.Review)
		if len(texts) >= max {
			break
		}
	}
	return texts, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("steam: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("steam: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("steam: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("steam: decode response: %w", err)
	}
	return nil
}
