package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/llm-workflow/internal/app"
	"github.com/suPer8Hu/llm-workflow/internal/store/rabbitmq"
	"github.com/suPer8Hu/llm-workflow/internal/usage"
)

var (
	aggDate    string
	aggProject string
	aggEnqueue bool
)

func init() {
	aggregateCmd.Flags().StringVar(&aggDate, "date", "", "UTC day to aggregate, YYYY-MM-DD (default yesterday)")
	aggregateCmd.Flags().StringVar(&aggProject, "project", "", "limit to one project id")
	aggregateCmd.Flags().BoolVar(&aggEnqueue, "enqueue", false, "publish a job for the worker instead of running here")
	rootCmd.AddCommand(aggregateCmd)
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild daily usage aggregates for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		day := usage.DayStart(time.Now()).AddDate(0, 0, -1)
		if aggDate != "" {
			if day, err = time.ParseInLocation(time.DateOnly, aggDate, time.UTC); err != nil {
				return fmt.Errorf("--date: %w", err)
			}
		}
		job := rabbitmq.NewAggregationJob(day, aggProject)

		if aggEnqueue {
			pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
			if err != nil {
				return fmt.Errorf("rabbitmq: %w", err)
			}
			defer pub.Close()
			if err := pub.PublishJob(cmd.Context(), job); err != nil {
				return err
			}
			fmt.Printf("queued date=%s project=%q on %s\n", job.Date, job.ProjectID, cfg.RabbitQueue)
			return nil
		}

		svc := usage.NewService(usage.NewRepo(app.OpenDB(cfg)))
		if aggProject != "" {
			agg, err := svc.AggregateProjectDay(cmd.Context(), aggProject, day)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s tokens=%d cost=%.6f\n", job.Date, agg.ProjectID, agg.TokensTotal, agg.CostTotal)
			return nil
		}
		n, err := svc.AggregateDay(cmd.Context(), day)
		if err != nil {
			return err
		}
		fmt.Printf("%s aggregated %d projects\n", job.Date, n)
		return nil
	},
}
