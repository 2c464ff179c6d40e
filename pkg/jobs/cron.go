// Package jobs runs the scheduled maintenance work: expiring abandoned
// session state and logging lead statistics.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionSweeper releases expired session state held in memory
type SessionSweeper interface {
	Sweep() int
}

// PipelinePruner drops per-session pipelines whose session is gone
type PipelinePruner interface {
	PruneStale(ctx context.Context) int
}

// LeadStats aggregates lead counts for the daily stats log
type LeadStats interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	sweeper SessionSweeper
	pruner  PipelinePruner
	stats   LeadStats
	logger  *log.Logger
}

// NewCronManager creates a new cron manager. sweeper may be nil when session
// state lives in Redis and expires by TTL.
func NewCronManager(sweeper SessionSweeper, pruner PipelinePruner, stats LeadStats, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:    cron.New(),
		sweeper: sweeper,
		pruner:  pruner,
		stats:   stats,
		logger:  logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Every 10 minutes: release abandoned session state
	_, err := cm.cron.AddFunc("*/10 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		swept := 0
		if cm.sweeper != nil {
			swept = cm.sweeper.Sweep()
		}
		pruned := cm.pruner.PruneStale(ctx)

		if swept > 0 || pruned > 0 {
			cm.logger.Printf("🧹 Session cleanup: %d expired sessions swept, %d pipelines released", swept, pruned)
		}
	})
	if err != nil {
		return err
	}

	// Daily at 8 AM: log lead statistics
	_, err = cm.cron.AddFunc("0 8 * * *", func() {
		cm.logger.Println("🕐 Logging lead statistics...")

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		stats, err := cm.stats.Stats(ctx)
		if err != nil {
			cm.logger.Printf("❌ Failed to get lead stats: %v", err)
			return
		}

		cm.logger.Printf("📊 Lead Statistics:")
		cm.logger.Printf("  Total leads: %d", stats["total"])
		for status, count := range stats {
			if status == "total" {
				continue
			}
			cm.logger.Printf("  %s: %d", status, count)
		}
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Every 10 minutes: Session cleanup")
	cm.logger.Println("  - Daily at 8 AM: Log lead statistics")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
