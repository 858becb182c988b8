package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gamehub_back/games"
	"gamehub_back/llm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNothingToAnalyze signals an account with no positive-playtime rows.
	ErrNothingToAnalyze = errors.New("analysis: no games to analyze")
	// ErrMalformedModelOutput signals model output with no extractable JSON.
	ErrMalformedModelOutput = errors.New("analysis: model output is not valid JSON")
)

// GameCatalog is the slice of the games store the analysis services need.
type GameCatalog interface {
	FindByAppID(ctx context.Context, appID int64) (*games.Game, error)
	MatchByTitle(ctx context.Context, title string) (*games.Game, error)
	PositivePlaytime(ctx context.Context, userID uint64) ([]games.UserGameLibrary, error)
	OwnedAppIDs(ctx context.Context, userID uint64) (map[int64]struct{}, error)
}

// TextGenerator is the slice of the LLM client the analysis services need.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (llm.GenerateResult, error)
}

// RecommendService builds a taste profile from a user's playtime history and
// keeps one rolling analysis record per account.
type RecommendService struct {
	db           *gorm.DB
	catalog      GameCatalog
	generator    TextGenerator
	requestCount int // titles asked from the model
	maxAccepted  int // validated titles persisted
}

// NewRecommendService builds a recommendation service. Non-positive counts
// fall back to the defaults (request 7 titles, keep at most 3).
func NewRecommendService(db *gorm.DB, catalog GameCatalog, generator TextGenerator, requestCount, maxAccepted int) *RecommendService {
	if requestCount <= 0 {
		requestCount = 7
	}
	if maxAccepted <= 0 {
		maxAccepted = 3
	}
	return &RecommendService{
		db:           db,
		catalog:      catalog,
		generator:    generator,
		requestCount: requestCount,
		maxAccepted:  maxAccepted,
	}
}

func recommendSystemPrompt(count int) string {
	return fmt.Sprintf(
		"You are an upbeat AI game analyst. Study the user's game list, describe their play style, "+
			"and recommend %d games they do not already own. Copy the title format of the provided list exactly. "+
			"Answer with nothing but a JSON object of this shape:\n"+
			`{"gamer_type": "one line label", "analysis": "three sentences", `+
			`"recommendations": [{"title": "game title", "reason": "why it fits"}]}`, count)
}

type recommendModelPayload struct {
	GamerType       string `json:"gamer_type"`
	Analysis        string `json:"analysis"`
	Recommendations []struct {
		Title  string `json:"title"`
		Reason string `json:"reason"`
	} `json:"recommendations"`
}

// Analyze returns the stored analysis unless forceUpdate is set, in which
// case (or on first call) it rebuilds the record from a fresh model call.
// The final accepted list may be shorter than requested, including empty;
// it overwrites the account's record unconditionally.
func (s *RecommendService) Analyze(ctx context.Context, userID uint64, forceUpdate bool) (*AIAnalysisLog, error) {
	if !forceUpdate {
		var existing AIAnalysisLog
		err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	entries, err := s.catalog.PositivePlaytime(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("analysis: load playtime history: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNothingToAnalyze
	}

	listed := make([]string, 0, len(entries))
	for _, entry := range entries {
		listed = append(listed, fmt.Sprintf("%s (%d hours)", entry.Game.Title, entry.PlaytimeTotal/60))
	}
	userPrompt := fmt.Sprintf("These are the games I play: [%s]. Analyze my taste and recommend something new!",
		strings.Join(listed, ", "))

	result, err := s.generator.Generate(ctx, recommendSystemPrompt(s.requestCount), userPrompt)
	if err != nil {
		return nil, fmt.Errorf("analysis: generate recommendation: %w", err)
	}

	raw, ok := llm.ExtractJSON(result.Content)
	if !ok {
		return nil, ErrMalformedModelOutput
	}
	var payload recommendModelPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedModelOutput
	}

	owned, err := s.catalog.OwnedAppIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("analysis: load owned set: %w", err)
	}

	accepted := make([]Recommendation, 0, s.maxAccepted)
	for _, rec := range payload.Recommendations {
		game, err := s.catalog.MatchByTitle(ctx, rec.Title)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Titles that do not resolve against the catalog are dropped.
				continue
			}
			return nil, fmt.Errorf("analysis: match title %q: %w", rec.Title, err)
		}
		_, isOwned := owned[game.AppID]
		accepted = append(accepted, Recommendation{
			Title:   rec.Title,
			Reason:  rec.Reason,
			AppID:   game.AppID,
			IsOwned: isOwned,
		})
		if len(accepted) >= s.maxAccepted {
			break
		}
	}

	encoded, err := json.Marshal(accepted)
	if err != nil {
		return nil, fmt.Errorf("analysis: encode recommendations: %w", err)
	}

	record, err := s.upsertLog(ctx, userID, payload.GamerType, payload.Analysis, encoded)
	if err != nil {
		return nil, fmt.Errorf("analysis: persist analysis: %w", err)
	}
	return record, nil
}

func (s *RecommendService) upsertLog(ctx context.Context, userID uint64, gamerType, analysisText string, recommendations []byte) (*AIAnalysisLog, error) {
	var existing AIAnalysisLog
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		existing.GamerType = gamerType
		existing.AnalysisText = analysisText
		existing.Recommendations = datatypes.JSON(recommendations)
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := AIAnalysisLog{
		UserID:          userID,
		GamerType:       gamerType,
		AnalysisText:    analysisText,
		Recommendations: datatypes.JSON(recommendations),
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// PurgeUser removes the analysis record of a withdrawn account.
func (s *RecommendService) PurgeUser(ctx context.Context, userID uint64) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&AIAnalysisLog{}).Error
}
