// Package app holds the wiring shared by the server, worker and CLI binaries.
package app

import (
	"context"
	"log"

	"github.com/suPer8Hu/llm-workflow/internal/ai"
	"github.com/suPer8Hu/llm-workflow/internal/config"
	"github.com/suPer8Hu/llm-workflow/internal/db"
	"github.com/suPer8Hu/llm-workflow/internal/store/redisstore"
	"gorm.io/gorm"
)

// NewRegistry registers every provider the config can reach. AI_PROVIDER
// picks the one used for model ids without a "provider:" prefix.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry(cfg.AIProvider)
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, cfg.AITimeout), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model, cfg.AITimeout), nil
	})
	return reg
}

// OpenDB connects and migrates. Failure is fatal.
func OpenDB(cfg config.Config) *gorm.DB {
	gdb := db.Connect(db.Options{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DBDSN,
		LogSQL:  cfg.LogSQL,
		MaxOpen: cfg.DBMaxOpen,
	})
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	return gdb
}

// OpenRedis returns nil when REDIS_ADDR is empty or the server is
// unreachable; callers then run without token revocation or job locks.
func OpenRedis(cfg config.Config) *redisstore.Store {
	if cfg.RedisAddr == "" {
		return nil
	}
	rds, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("redis unavailable addr=%s err=%v", cfg.RedisAddr, err)
		return nil
	}
	return rds
}
