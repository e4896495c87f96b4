package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/config"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi/handlers"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	api.POST("/users", h.CreateUser)
	api.POST("/login", h.Login)

	// a nil TokenStore must reach the middleware as a nil interface
	var revoked middleware.RevocationChecker
	if h.Tokens != nil {
		revoked = h.Tokens
	}
	authed := api.Group("")
	authed.Use(middleware.AuthRequired(cfg.JWTSecret, revoked))

	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PATCH("/me", h.UpdateMe)
	authed.DELETE("/me", h.DeleteMe)

	authed.POST("/teams", h.CreateTeam)
	authed.GET("/teams", h.ListTeams)
	authed.DELETE("/teams/:id", h.DeleteTeam)

	authed.POST("/projects", h.CreateProject)
	authed.GET("/projects", h.ListProjects)
	authed.GET("/projects/:id", h.GetProject)
	authed.PATCH("/projects/:id", h.UpdateProject)
	authed.DELETE("/projects/:id", h.DeleteProject)

	authed.POST("/prompts", h.CreatePrompt)
	authed.GET("/prompts", h.ListPrompts)
	authed.GET("/prompts/:id", h.GetPrompt)
	authed.PATCH("/prompts/:id", h.UpdatePrompt)
	authed.DELETE("/prompts/:id", h.DeletePrompt)
	authed.POST("/prompts/:id/versions", h.CreatePromptVersion)
	authed.GET("/prompts/:id/versions", h.ListPromptVersions)
	authed.GET("/prompts/:id/versions/:number", h.GetPromptVersion)

	authed.POST("/sessions", h.CreateSession)
	authed.GET("/sessions", h.ListSessions)
	authed.GET("/sessions/:id", h.GetSession)
	authed.PATCH("/sessions/:id", h.UpdateSession)
	authed.DELETE("/sessions/:id", h.DeleteSession)
	authed.POST("/sessions/:id/messages", h.AppendMessage)
	authed.GET("/sessions/:id/messages", h.ListMessages)

	authed.POST("/llm/run", h.RunLLM)

	authed.POST("/usage/events", h.RecordUsageEvent)
	authed.GET("/usage/events", h.ListUsageEvents)
	authed.PATCH("/usage/events/:id/feedback", h.SetUsageFeedback)
	authed.GET("/usage/aggregates", h.ListUsageAggregates)
	authed.POST("/usage/aggregates/jobs", h.EnqueueAggregation)

	authed.POST("/messages/:id/embeddings", h.CreateEmbedding)
	authed.GET("/messages/:id/embeddings", h.ListMessageEmbeddings)
	authed.GET("/embeddings", h.ListEmbeddings)
	authed.DELETE("/embeddings/:id", h.DeleteEmbedding)

	authed.POST("/files", h.CreateFile)
	authed.GET("/files", h.ListFiles)
	authed.GET("/files/:id", h.GetFile)
	authed.DELETE("/files/:id", h.DeleteFile)

	authed.GET("/audit", h.ListAudit)
	return r
}
