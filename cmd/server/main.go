package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/llm-workflow/internal/app"
	"github.com/suPer8Hu/llm-workflow/internal/config"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi"
	"github.com/suPer8Hu/llm-workflow/internal/httpapi/handlers"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb := app.OpenDB(cfg)

	var tokens handlers.TokenStore
	if rds := app.OpenRedis(cfg); rds != nil {
		defer rds.Close()
		tokens = rds
	} else {
		log.Printf("token revocation disabled: logout only acknowledges")
	}

	var jobs handlers.JobPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("rabbitmq unavailable, aggregation runs inline: %v", err)
		} else {
			defer pub.Close()
			jobs = pub
		}
	}

	h := handlers.NewHandler(gdb, cfg, app.NewRegistry(cfg), tokens, jobs)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (db=%s provider=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
