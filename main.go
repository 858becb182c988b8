package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"gamehub_back/accounts"
	"gamehub_back/analysis"
	"gamehub_back/community"
	"gamehub_back/games"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func corsMiddleware() gin.HandlerFunc {
	origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
	cfg := cors.DefaultConfig()
	if origins == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(origins, ",")
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func main() {
	seedCatalog := flag.Bool("seed-catalog", false, "fetch the full Steam app list into the catalog and exit")
	flag.Parse()

	mustLoadEnv()

	if *seedCatalog {
		created, err := games.SeedCatalog(context.Background())
		if err != nil {
			log.Fatalf("seed catalog failed after %d entries: %v", created, err)
		}
		log.Printf("seed catalog done, %d entries added", created)
		return
	}

	r := gin.Default()
	r.Use(corsMiddleware(), requestIDMiddleware())

	accountsModule, err := accounts.RegisterRoutes(r)
	if err != nil {
		log.Fatalf("register accounts routes: %v", err)
	}

	gamesModule, err := games.RegisterRoutes(r, accountsModule.Guard())
	if err != nil {
		log.Fatalf("register games routes: %v", err)
	}

	// Every fresh account gets an empty favorite-game slot.
	accountsModule.OnAccountCreated(gamesModule.EnsureFavoriteSelection)
	gamesModule.OnLibrarySynced(accountsModule.TouchLastSynced)

	analysisModule, err := analysis.RegisterRoutes(r, accountsModule.Guard(), gamesModule.Store())
	if err != nil {
		log.Fatalf("register analysis routes: %v", err)
	}

	communityModule, err := community.RegisterRoutes(r, accountsModule.Guard())
	if err != nil {
		log.Fatalf("register community routes: %v", err)
	}

	// The profile endpoint embeds the favorite game and the stored analysis.
	accountsModule.AddProfileField("favorite_game", gamesModule.FavoriteProfileField)
	accountsModule.AddProfileField("ai_info", analysisModule.AnalysisProfileField)

	// Withdrawal sweeps the account's data out of every dependent module.
	accountsModule.OnAccountDeleted(gamesModule.PurgeUserData)
	accountsModule.OnAccountDeleted(analysisModule.PurgeUserData)
	accountsModule.OnAccountDeleted(communityModule.PurgeUserData)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
