package steam

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:       "test-key",
		StoreBaseURL: server.URL,
		APIBaseURL:   server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestFetchAppDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appdetails", r.URL.Path)
		assert.Equal(t, "730", r.URL.Query().Get("appids"))
		fmt.Fprint(w, `{"730": {"success": true, "data": {
			"name": "Counter-Strike 2",
			"short_description": "Tactical shooter.",
			"header_image": "https://img.example/730.jpg",
			"publishers": ["Valve", "Other"],
			"price_overview": {"final": 15000},
			"release_date": {"date": "2023-09-27"},
			"genres": [{"description": "Action"}, {"description": "FPS"}],
			"categories": [{"description": "Multi-player"}]
		}}}`)
	}))

	detail, err := client.FetchAppDetail(context.Background(), 730)
	require.NoError(t, err)
	assert.Equal(t, int64(730), detail.AppID)
	assert.Equal(t, "Counter-Strike 2", detail.Title)
	assert.Equal(t, "Tactical shooter.", detail.Description)
	assert.Equal(t, 15000, detail.Price)
	assert.Equal(t, "Valve", detail.Publisher)
	assert.Equal(t, []string{"Action", "FPS"}, detail.Genres)
	assert.Equal(t, []string{"Multi-player"}, detail.Categories)
	require.NotNil(t, detail.ReleaseDate)
	assert.Equal(t, time.Date(2023, 9, 27, 0, 0, 0, 0, time.UTC), detail.ReleaseDate.UTC())
}

func TestFetchAppDetailNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"999999": {"success": false}}`)
	}))

	_, err := client.FetchAppDetail(context.Background(), 999999)
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestFetchAppDetailFreeGame(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"570": {"success": true, "data": {"name": "Dota 2", "short_description": "MOBA."}}}`)
	}))

	detail, err := client.FetchAppDetail(context.Background(), 570)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.Price)
	assert.Nil(t, detail.ReleaseDate)
	assert.Empty(t, detail.Publisher)
}

func TestParseReleaseDateLayouts(t *testing.T) {
	korean := parseReleaseDate("2023년 9월 27일")
	require.NotNil(t, korean)
	assert.Equal(t, 2023, korean.Year())
	assert.Equal(t, time.September, korean.Month())
	assert.Equal(t, 27, korean.Day())

	english := parseReleaseDate("27 Sep, 2023")
	require.NotNil(t, english)
	assert.Equal(t, korean.Format("2006-01-02"), english.Format("2006-01-02"))

	assert.Nil(t, parseReleaseDate("Coming soon"))
	assert.Nil(t, parseReleaseDate(""))
}

func TestFetchOwnedGames(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/IPlayerService/GetOwnedGames/v0001/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "76561198000000001", r.URL.Query().Get("steamid"))
		fmt.Fprint(w, `{"response": {"game_count": 2, "games": [
			{"appid": 730, "name": "Counter-Strike 2", "playtime_forever": 1200, "playtime_2weeks": 30},
			{"appid": 570, "name": "Dota 2", "playtime_forever": 0}
		]}}`)
	}))

	games, err := client.FetchOwnedGames(context.Background(), "76561198000000001")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, int64(730), games[0].AppID)
	assert.Equal(t, 1200, games[0].PlaytimeForever)
	assert.Equal(t, 30, games[0].Playtime2Weeks)
	assert.Equal(t, "Dota 2", games[1].Name)
}

func TestFetchOwnedGamesRequiresSteamID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := client.FetchOwnedGames(context.Background(), "  ")
	assert.Error(t, err)
}

func TestFetchAppList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/IStoreService/GetAppList/v1/", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "test-key", query.Get("key"))
		assert.Equal(t, "500", query.Get("last_appid"))
		assert.Equal(t, "2", query.Get("max_results"))
		assert.Equal(t, "true", query.Get("include_games"))
		assert.Equal(t, "false", query.Get("include_dlc"))
		assert.Equal(t, "false", query.Get("include_software"))
		fmt.Fprint(w, `{"response": {
			"apps": [{"appid": 570, "name": "Dota 2"}, {"appid": 730, "name": "Counter-Strike 2"}],
			"have_more_results": true,
			"last_appid": 730
		}}`)
	}))

	page, err := client.FetchAppList(context.Background(), 500, 2)
	require.NoError(t, err)
	require.Len(t, page.Apps, 2)
	assert.Equal(t, int64(570), page.Apps[0].AppID)
	assert.True(t, page.HaveMore)
	assert.Equal(t, int64(730), page.LastAppID)
}

func TestFetchAppListCursorFallback(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response": {"apps": [{"appid": 570, "name": "Dota 2"}]}}`)
	}))

	page, err := client.FetchAppList(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.False(t, page.HaveMore)
	assert.Equal(t, int64(570), page.LastAppID)
}

func TestFetchPlayerSummary(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ISteamUser/GetPlayerSummaries/v0002/", r.URL.Path)
		fmt.Fprint(w, `{"response": {"players": [
			{"steamid": "76561198000000001", "personaname": "gamer", "avatarfull": "https://img.example/a.jpg"}
		]}}`)
	}))

	player, err := client.FetchPlayerSummary(context.Background(), "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, "gamer", player.PersonaName)
	assert.Equal(t, "https://img.example/a.jpg", player.AvatarFull)
}

func TestFetchReviewsCapsAndSkipsEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appreviews/730", r.URL.Path)
		fmt.Fprint(w, `{"reviews": [
			{"review": "great"},
			{"review": "   "},
			{"review": "solid"},
			{"review": "fun"},
			{"review": "meh"}
		]}`)
	}))

	texts, err := client.FetchReviews(context.Background(), 730, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"great", "solid", "fun"}, texts)
}

func TestFetchReviewsZeroMax(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	texts, err := client.FetchReviews(context.Background(), 730, 0)
	require.NoError(t, err)
	assert.Nil(t, texts)
}

func TestGetJSONNonOKStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))

	_, err := client.FetchAppDetail(context.Background(), 730)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
