package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callMe(t *testing.T, module *Module, userID uint64) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/accounts/me", func(c *gin.Context) {
		c.Set("JWT_PAYLOAD", jwt.MapClaims{"user_id": float64(userID)})
		module.handleMe(c)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/accounts/me", nil))
	return recorder
}

func TestHandleMeEmbedsProfileFields(t *testing.T) {
	store := openTestUserStore(t)
	user, _, err := store.GetOrCreateBySteamID(context.Background(), "76561198000000001")
	require.NoError(t, err)

	module := &Module{users: store}
	module.AddProfileField("favorite_game", func(ctx context.Context, userID uint64) (interface{}, bool) {
		assert.Equal(t, user.ID, userID)
		return gin.H{"appid": int64(440), "title": "Team Fortress 2", "header_image": ""}, true
	})
	// A provider with nothing stored still renders its field as null.
	module.AddProfileField("ai_info", func(ctx context.Context, userID uint64) (interface{}, bool) {
		return nil, true
	})
	// A failing provider drops its field from the payload entirely.
	module.AddProfileField("unavailable", func(ctx context.Context, userID uint64) (interface{}, bool) {
		return nil, false
	})

	recorder := callMe(t, module, user.ID)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, user.Username, payload["username"])

	favorite, ok := payload["favorite_game"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Team Fortress 2", favorite["title"])

	value, present := payload["ai_info"]
	assert.True(t, present)
	assert.Nil(t, value)

	_, present = payload["unavailable"]
	assert.False(t, present)
}

func TestHandleMeWithoutProfileFields(t *testing.T) {
	store := openTestUserStore(t)
	user, _, err := store.GetOrCreateBySteamID(context.Background(), "76561198000000001")
	require.NoError(t, err)

	recorder := callMe(t, &Module{users: store}, user.ID)
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, user.Username, payload["username"])
	_, present := payload["favorite_game"]
	assert.False(t, present)
}
