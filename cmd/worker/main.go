package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/llm-workflow/internal/app"
	"github.com/suPer8Hu/llm-workflow/internal/common"
	"github.com/suPer8Hu/llm-workflow/internal/config"
	"github.com/suPer8Hu/llm-workflow/internal/models"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
)

const lockTTL = 5 * time.Minute

// errLocked means another worker is rebuilding the same day.
var errLocked = errors.New("aggregation already running")

type aggregator interface {
	AggregateDay(ctx context.Context, day time.Time) (int, error)
	AggregateProjectDay(ctx context.Context, projectID string, day time.Time) (*models.UsageAggregate, error)
}

type locker interface {
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (func(context.Context) error, bool, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb := app.OpenDB(cfg)
	svc := usage.NewService(usage.NewRepo(gdb))

	var locks locker
	if rds := app.OpenRedis(cfg); rds != nil {
		defer rds.Close()
		locks = rds
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	log.Printf("worker started, queue=%s concurrency=%d max_retries=%d", cfg.RabbitQueue, concurrency, cfg.WorkerMaxRetries)

	retry := func(ctx context.Context, job rabbitmq.AggregationJob, delay time.Duration) error {
		return rabbitmq.PublishRetry(ctx, ch, cfg.RabbitQueue, job, delay)
	}

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				job, err := rabbitmq.DecodeJob(d.Body)
				if err != nil {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				err = handleJob(ctx, svc, locks, job)
				if err == nil {
					log.Printf("worker=%d job date=%s project=%q done cost=%s", workerID, job.Date, job.ProjectID, time.Since(start))
					if err := d.Ack(false); err != nil {
						log.Printf("worker=%d ack failed date=%s err=%v", workerID, job.Date, err)
					}
					continue
				}

				log.Printf("worker=%d job date=%s project=%q attempt=%d failed cost=%s err=%v",
					workerID, job.Date, job.ProjectID, job.Attempt, time.Since(start), err)
				if !shouldRetry(err, job, cfg.WorkerMaxRetries) {
					_ = d.Nack(false, false) // -> DLQ
					continue
				}
				job.Attempt++
				if err := retry(ctx, job, rabbitmq.RetryDelay(job.Attempt)); err != nil {
					log.Printf("worker=%d retry publish failed date=%s err=%v", workerID, job.Date, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}

// handleJob rebuilds the aggregates a job names. With locks set, one day is
// rebuilt by at most one worker at a time.
func handleJob(ctx context.Context, agg aggregator, locks locker, job rabbitmq.AggregationJob) error {
	day, err := job.Day()
	if err != nil {
		return common.Validationf("job date %q: %v", job.Date, err)
	}

	if locks != nil {
		owner, err := common.NewULID()
		if err != nil {
			return err
		}
		release, ok, err := locks.TryLock(ctx, "usage-aggregate:"+job.Date, owner, lockTTL)
		if err != nil {
			return err
		}
		if !ok {
			return errLocked
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Printf("release lock date=%s err=%v", job.Date, err)
			}
		}()
	}

	if job.ProjectID != "" {
		_, err = agg.AggregateProjectDay(ctx, job.ProjectID, day)
		return err
	}
	_, err = agg.AggregateDay(ctx, day)
	return err
}

// shouldRetry: a missing project or malformed date will not fix itself.
func shouldRetry(err error, job rabbitmq.AggregationJob, maxRetries int) bool {
	if errors.Is(err, common.ErrNotFound) {
		return false
	}
	if errors.Is(err, common.ErrValidation) && !errors.Is(err, usage.ErrWindowOpen) {
		return false
	}
	return job.Attempt < maxRetries
}
