package accounts

import (
	"net/http"
	"time"

	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
)

// Guard wraps the JWT middleware so other modules can protect their routes.
type Guard struct {
	jwt *jwt.GinJWTMiddleware
}

// Guard returns the shared guard instance for this module.
func (m *Module) Guard() *Guard {
	if m == nil || m.jwtMiddleware == nil {
		return nil
	}
	return &Guard{jwt: m.jwtMiddleware}
}

// RequireAuthenticated ensures the request carries a valid JWT.
func (g *Guard) RequireAuthenticated() gin.HandlerFunc {
	if g == nil || g.jwt == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		}
	}
	return g.jwt.MiddlewareFunc()
}

// OptionalAuthenticated parses a JWT when one is present but lets anonymous
// requests through. Handlers see a zero user id for anonymous callers.
func (g *Guard) OptionalAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g == nil || g.jwt == nil {
			c.Next()
			return
		}
		claims, err := g.jwt.GetClaimsFromJWT(c)
		if err == nil && !claimsExpired(claims) {
			c.Set("JWT_PAYLOAD", claims)
		}
		c.Next()
	}
}

func claimsExpired(claims jwt.MapClaims) bool {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return true
	}
	return int64(exp) < time.Now().Unix()
}

// CurrentUserID extracts the authenticated account id from the request claims.
func CurrentUserID(c *gin.Context) uint64 {
	return extractUserID(jwt.ExtractClaims(c))
}

// CurrentSteamID extracts the Steam id from the request claims.
func CurrentSteamID(c *gin.Context) string {
	return extractSteamID(jwt.ExtractClaims(c))
}

func extractUserID(claims jwt.MapClaims) uint64 {
	if claims == nil {
		return 0
	}
	switch v := claims[identityKey].(type) {
	case float64:
		return uint64(v)
	case int64:
		return uint64(v)
	case uint64:
		return v
	case int:
		return uint64(v)
	default:
		return 0
	}
}

func extractSteamID(claims jwt.MapClaims) string {
	if claims == nil {
		return ""
	}
	steamID, _ := claims["steam_id"].(string)
	return steamID
}
