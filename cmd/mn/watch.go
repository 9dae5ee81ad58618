package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	watchBriefing string
	watchTest     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run ingest (and the daily briefing) on a cron schedule",
	Long: `Run ingest immediately and then on a cron schedule until interrupted.
When a briefing schedule is set, the daily briefing runs on it as well.
Jobs never overlap: a run that is still going when the next one is due
makes the next one wait or skip.`,
	Example: `  mn watch
  mn watch --schedule "*/15 7-18 * * 1-5" --briefing "0 6 * * 1-5"
  mn watch --briefing ""`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !cmd.Flags().Changed("schedule") {
			watchSchedule = cfg.Watch.Ingest
		}
		if !cmd.Flags().Changed("briefing") {
			watchBriefing = cfg.Watch.Briefing
		}

		p, err := buildPorts(ctx, watchTest, true)
		if err != nil {
			return err
		}
		runner, err := newIngestRunner(p)
		if err != nil {
			return err
		}
		svc, err := newBriefingService(p)
		if err != nil {
			return err
		}

		// One job at a time across both schedules.
		var mu sync.Mutex
		runIngest := func() {
			mu.Lock()
			defer mu.Unlock()
			if _, err := runner.Run(ctx); err != nil {
				logger.Error("ingest run failed", "err", err)
			}
		}
		runBriefing := func() {
			mu.Lock()
			defer mu.Unlock()
			if _, err := svc.Run(ctx); err != nil {
				logger.Error("briefing failed", "err", err)
			}
		}

		c := cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		)
		if _, err := c.AddFunc(watchSchedule, runIngest); err != nil {
			return fmt.Errorf("ingest schedule %q: %w", watchSchedule, err)
		}
		if watchBriefing != "" {
			if _, err := c.AddFunc(watchBriefing, runBriefing); err != nil {
				return fmt.Errorf("briefing schedule %q: %w", watchBriefing, err)
			}
		}

		logger.Info("watching", "ingest", watchSchedule, "briefing", watchBriefing)
		runIngest()

		c.Start()
		<-ctx.Done()
		logger.Info("stopping, waiting for running jobs")
		<-c.Stop().Done()
		return ignoreCanceled(ctx.Err())
	},
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "Cron expression for ingest (default from config watch.ingest)")
	watchCmd.Flags().StringVar(&watchBriefing, "briefing", "", "Cron expression for the daily briefing, empty to disable (default from config watch.briefing)")
	watchCmd.Flags().BoolVar(&watchTest, "test", false, "Use sample data and in-memory services")
	rootCmd.AddCommand(watchCmd)
}
