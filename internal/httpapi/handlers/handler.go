package handlers

import (
	"context"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/ai"
	"github.com/suPer8Hu/llm-workflow/internal/artifact"
	"github.com/suPer8Hu/llm-workflow/internal/audit"
	"github.com/suPer8Hu/llm-workflow/internal/chat"
	"github.com/suPer8Hu/llm-workflow/internal/config"
	"github.com/suPer8Hu/llm-workflow/internal/org"
	"github.com/suPer8Hu/llm-workflow/internal/prompt"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
	"gorm.io/gorm"
)

// TokenStore revokes access tokens on logout and answers revocation checks.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JobPublisher enqueues aggregation jobs for the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, job rabbitmq.AggregationJob) error
}

type Handler struct {
	Cfg       config.Config
	Tokens    TokenStore
	Jobs      JobPublisher
	Orgs      *org.Service
	Prompts   *prompt.Service
	ChatSvc   *chat.Service
	Usage     *usage.Service
	Artifacts *artifact.Service
	Audit     *audit.Log
}

// NewHandler wires the services over db. tokens and jobs may be nil: logout
// then only acknowledges, and aggregation jobs run inline.
func NewHandler(db *gorm.DB, cfg config.Config, registry *ai.Registry, tokens TokenStore, jobs JobPublisher) *Handler {
	prompts := prompt.NewService(prompt.NewRepo(db))
	usageSvc := usage.NewService(usage.NewRepo(db))
	return &Handler{
		Cfg:       cfg,
		Tokens:    tokens,
		Jobs:      jobs,
		Orgs:      org.NewService(org.NewRepo(db)),
		Prompts:   prompts,
		ChatSvc:   chat.NewService(chat.NewRepo(db), prompts, usageSvc, registry, cfg.DefaultModel, cfg.ChatContextWindowSize),
		Usage:     usageSvc,
		Artifacts: artifact.NewService(artifact.NewRepo(db)),
		Audit:     audit.New(db),
	}
}
