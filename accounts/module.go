package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"gamehub_back/steam"
	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	identityKey     = "user_id"
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 24 * time.Hour
)

// AccountCreatedHook runs after a brand-new account row is committed.
type AccountCreatedHook func(ctx context.Context, userID uint64)

// AccountDeletedHook runs after an account withdrawal, once per dependent module.
type AccountDeletedHook func(ctx context.Context, userID uint64) error

// ProfileExtra supplies one extra field for the /me payload. The second
// return value reports whether the field should be included at all.
type ProfileExtra func(ctx context.Context, userID uint64) (interface{}, bool)

type profileField struct {
	name  string
	extra ProfileExtra
}

// Module wires together the Steam login flow and the JWT cookie middleware.
type Module struct {
	db            *gorm.DB
	users         *UserStore
	verifier      *OpenIDVerifier
	steamClient   *steam.Client
	jwtMiddleware *jwt.GinJWTMiddleware
	frontendURL   string
	secureCookies bool
	createdHooks  []AccountCreatedHook
	deletedHooks  []AccountDeletedHook
	profileFields []profileField
}

// RegisterRoutes bootstraps the account endpoints under /accounts.
func RegisterRoutes(router *gin.Engine) (*Module, error) {
	frontendURL := strings.TrimSpace(os.Getenv("FRONTEND_URL"))
	if frontendURL == "" {
		return nil, errors.New("accounts: FRONTEND_URL environment variable is required")
	}

	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("accounts: migrate models: %w", err)
	}

	steamClient, err := steam.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	module := &Module{
		db:            db,
		users:         &UserStore{db: db},
		verifier:      NewOpenIDVerifier(strings.TrimSpace(os.Getenv("STEAM_OPENID_URL")), 0),
		steamClient:   steamClient,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		secureCookies: strings.EqualFold(strings.TrimSpace(os.Getenv("COOKIE_SECURE")), "true"),
	}

	middleware, err := module.buildJWTMiddleware()
	if err != nil {
		return nil, err
	}
	module.jwtMiddleware = middleware

	group := router.Group("/accounts")
	group.GET("/steam/url", module.handleSteamLoginURL)
	group.POST("/steam/verify", module.handleSteamVerify)
	group.POST("/refresh", middleware.RefreshHandler)
	group.POST("/logout", module.handleLogout)

	secured := group.Group("")
	secured.Use(middleware.MiddlewareFunc())
	secured.GET("/me", module.handleMe)
	secured.DELETE("/withdraw", module.handleWithdraw)

	return module, nil
}

// OnAccountCreated registers a hook fired for every newly created account.
func (m *Module) OnAccountCreated(hook AccountCreatedHook) {
	if m == nil || hook == nil {
		return
	}
	m.createdHooks = append(m.createdHooks, hook)
}

// OnAccountDeleted registers a cleanup hook fired on account withdrawal.
func (m *Module) OnAccountDeleted(hook AccountDeletedHook) {
	if m == nil || hook == nil {
		return
	}
	m.deletedHooks = append(m.deletedHooks, hook)
}

// AddProfileField registers an extra field rendered into the /me payload,
// letting dependent modules embed their per-account data without a reverse
// import.
func (m *Module) AddProfileField(name string, extra ProfileExtra) {
	if m == nil || name == "" || extra == nil {
		return
	}
	m.profileFields = append(m.profileFields, profileField{name: name, extra: extra})
}

// TouchLastSynced stamps the library sync time on the account row.
func (m *Module) TouchLastSynced(ctx context.Context, userID uint64) {
	if m == nil || m.users == nil {
		return
	}
	if err := m.users.TouchLastSynced(ctx, userID); err != nil {
		log.Printf("accounts: stamp last_synced_at for user %d failed: %v", userID, err)
	}
}

func (m *Module) buildJWTMiddleware() (*jwt.GinJWTMiddleware, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return nil, errors.New("accounts: JWT_SECRET environment variable is required")
	}

	return jwt.New(&jwt.GinJWTMiddleware{
		Realm:       "gamehub",
		Key:         []byte(secret),
		Timeout:     accessTokenTTL,
		MaxRefresh:  refreshTokenTTL,
		IdentityKey: identityKey,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if user, ok := data.(*AuthenticatedUser); ok {
				return jwt.MapClaims{
					identityKey: user.ID,
					"steam_id":  user.SteamID,
				}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(c *gin.Context) interface{} {
			claims := jwt.ExtractClaims(c)
			return &AuthenticatedUser{
				ID:      extractUserID(claims),
				SteamID: extractSteamID(claims),
			}
		},
		// Login goes through the Steam verify handler, never this path.
		Authenticator: func(c *gin.Context) (interface{}, error) {
			return nil, jwt.ErrFailedAuthentication
		},
		Authorizator: func(data interface{}, c *gin.Context) bool {
			user, ok := data.(*AuthenticatedUser)
			return ok && user.ID != 0
		},
		Unauthorized: func(c *gin.Context, code int, message string) {
			c.JSON(code, gin.H{"error": message})
		},
		RefreshResponse: func(c *gin.Context, code int, token string, expire time.Time) {
			m.setAuthCookies(c, token)
			c.JSON(code, gin.H{"token": token, "expire": expire})
		},
		TokenLookup:   "cookie: access_token, cookie: refresh_token, header: Authorization",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
	})
}

// AuthenticatedUser is the minimal identity stored inside JWT claims.
type AuthenticatedUser struct {
	ID      uint64
	SteamID string
}

func (m *Module) setAuthCookies(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", token, int(accessTokenTTL.Seconds()), "/", "", m.secureCookies, true)
	c.SetCookie("refresh_token", token, int(refreshTokenTTL.Seconds()), "/", "", m.secureCookies, true)
}

func (m *Module) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", "", -1, "/", "", m.secureCookies, true)
	c.SetCookie("refresh_token", "", -1, "/", "", m.secureCookies, true)
}

func (m *Module) handleSteamLoginURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": m.verifier.BuildLoginURL(m.frontendURL)})
}

func (m *Module) handleSteamVerify(c *gin.Context) {
	var params map[string]string
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	ctx := c.Request.Context()
	steamID, err := m.verifier.Verify(ctx, params)
	if err != nil {
		if errors.Is(err, ErrVerificationFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "steam authentication failed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "steam verification unavailable"})
		return
	}

	user, created, err := m.users.GetOrCreateBySteamID(ctx, steamID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}
	if created {
		for _, hook := range m.createdHooks {
			hook(ctx, user.ID)
		}
	}

	// Profile data may have changed since the last login, so refresh it every
	// time. Failure here must not block the login.
	if summary, err := m.steamClient.FetchPlayerSummary(ctx, steamID); err != nil {
		log.Printf("accounts: fetch player summary for %s failed (login proceeds): %v", steamID, err)
	} else if err := m.users.UpdateSteamProfile(ctx, user.ID, summary.PersonaName, summary.AvatarFull); err != nil {
		log.Printf("accounts: update profile for %s failed: %v", steamID, err)
	}

	token, expire, err := m.jwtMiddleware.TokenGenerator(&AuthenticatedUser{ID: user.ID, SteamID: steamID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	m.setAuthCookies(c, token)
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"expire":   expire,
		"message":  "Login success",
		"steam_id": steamID,
	})
}

func (m *Module) handleLogout(c *gin.Context) {
	m.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (m *Module) handleMe(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := m.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	payload := gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"nickname":       user.Nickname,
		"avatar":         user.Avatar,
		"last_synced_at": user.LastSyncedAt,
	}
	ctx := c.Request.Context()
	for _, field := range m.profileFields {
		if value, ok := field.extra(ctx, userID); ok {
			payload[field.name] = value
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (m *Module) handleWithdraw(c *gin.Context) {
	userID := CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx := c.Request.Context()
	if err := m.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
		return
	}

	for _, hook := range m.deletedHooks {
		if err := hook(ctx, userID); err != nil {
			log.Printf("accounts: cleanup after withdrawal of user %d failed: %v", userID, err)
		}
	}

	m.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

// UserStore provides data access helpers backed by GORM.
type UserStore struct {
	db *gorm.DB
}

// FindByID loads a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id uint64) (*User, error) {
	if s == nil {
		return nil, errors.New("accounts: user store not initialized")
	}
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateBySteamID loads the account for a Steam id, creating it on first
// login. The second return value reports whether a new row was created.
func (s *UserStore) GetOrCreateBySteamID(ctx context.Context, steamID string) (*User, bool, error) {
	if s == nil {
		return nil, false, errors.New("accounts: user store not initialized")
	}

	var user User
	err := s.db.WithContext(ctx).Where("username = ?", steamID).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = User{Username: steamID}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Concurrent first logins can race on the unique index; the loser
		// re-reads the winner's row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing User
			if readErr := s.db.WithContext(ctx).Where("username = ?", steamID).First(&existing).Error; readErr == nil {
				return &existing, false, nil
			}
		}
		return nil, false, err
	}
	return &user, true, nil
}

// UpdateSteamProfile overwrites the mirrored Steam profile fields.
func (s *UserStore) UpdateSteamProfile(ctx context.Context, userID uint64, nickname, avatar string) error {
	updates := map[string]interface{}{
		"nickname":   strings.TrimSpace(nickname),
		"updated_at": time.Now().UTC(),
	}
	if trimmed := strings.TrimSpace(avatar); trimmed != "" {
		updates["avatar"] = trimmed
	}
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates).Error
}

// TouchLastSynced records the time of the latest library sync.
func (s *UserStore) TouchLastSynced(ctx context.Context, userID uint64) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Update("last_synced_at", now).Error
}

// Delete removes the account row.
func (s *UserStore) Delete(ctx context.Context, userID uint64) error {
	result := s.db.WithContext(ctx).Where("id = ?", userID).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
