package analysis

import (
	"context"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAnalysisProfileField(t *testing.T) {
	db := openTestDB(t)
	module := &Module{db: db}
	ctx := context.Background()

	// No stored analysis renders as an explicit null.
	value, ok := module.AnalysisProfileField(ctx, 7)
	assert.True(t, ok)
	assert.Nil(t, value)

	record := AIAnalysisLog{
		UserID:          7,
		GamerType:       "Explorer",
		AnalysisText:    "You roam open worlds for hundreds of hours.",
		Recommendations: datatypes.JSON([]byte(`[{"appid":440,"title":"Team Fortress 2"}]`)),
	}
	require.NoError(t, db.Create(&record).Error)

	value, ok = module.AnalysisProfileField(ctx, 7)
	require.True(t, ok)
	payload, isMap := value.(gin.H)
	require.True(t, isMap)
	assert.Equal(t, "Explorer", payload["gamer_type"])
	assert.Equal(t, record.AnalysisText, payload["analysis_text"])
	assert.Equal(t, record.Recommendations, payload["recommendations"])
}
