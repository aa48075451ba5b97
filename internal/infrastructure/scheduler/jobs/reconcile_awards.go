// Package jobs contains the scheduled jobs of the worker.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campus-hub/study-match/internal/application/command"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AWARDS JOB
// Scans a sliding window of accepted/completed matches and bonus-eligible
// ratings and re-applies their awards. A window with failures is kept and
// rescanned on the next run until it succeeds.
// ══════════════════════════════════════════════════════════════════════════════

// AwardReconciler runs one reconciliation pass.
type AwardReconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileAwardsCommand) (*command.ReconcileAwardsResult, error)
}

// ReconcileRecorder receives per-run outcomes. Implemented by the metrics collector.
type ReconcileRecorder interface {
	RecordReconcile(applied, failed int, err error)
}

// ReconcileAwardsConfig contains configuration for the job.
type ReconcileAwardsConfig struct {
	// Lookback is the width of the scanned window.
	Lookback time.Duration

	// BatchLimit caps records per category and run.
	BatchLimit int

	// Timeout bounds one run.
	Timeout time.Duration
}

// DefaultReconcileAwardsConfig returns sensible defaults.
func DefaultReconcileAwardsConfig() ReconcileAwardsConfig {
	return ReconcileAwardsConfig{
		Lookback:   24 * time.Hour,
		BatchLimit: 500,
		Timeout:    2 * time.Minute,
	}
}

// ReconcileAwardsJob implements scheduler.Job.
type ReconcileAwardsJob struct {
	handler  AwardReconciler
	recorder ReconcileRecorder
	clock    shared.Clock
	config   ReconcileAwardsConfig
	log      *logger.Logger

	mu        sync.Mutex
	retryFrom time.Time
	last      *command.ReconcileAwardsResult
}

// NewReconcileAwardsJob creates the job. recorder may be nil.
func NewReconcileAwardsJob(
	handler AwardReconciler,
	recorder ReconcileRecorder,
	clock shared.Clock,
	config ReconcileAwardsConfig,
	log *logger.Logger,
) *ReconcileAwardsJob {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	def := DefaultReconcileAwardsConfig()
	if config.Lookback <= 0 {
		config.Lookback = def.Lookback
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = def.BatchLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &ReconcileAwardsJob{
		handler:  handler,
		recorder: recorder,
		clock:    clock,
		config:   config,
		log:      log.With(logger.Component("job"), logger.String("job", "reconcile_awards")),
	}
}

// Name returns the job name.
func (j *ReconcileAwardsJob) Name() string {
	return "reconcile_awards"
}

// Description returns a human-readable description.
func (j *ReconcileAwardsJob) Description() string {
	return "Re-applies point awards whose post-commit step failed"
}

// Run executes one reconciliation pass.
func (j *ReconcileAwardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.mu.Lock()
	since := j.clock.Now().Add(-j.config.Lookback)
	if !j.retryFrom.IsZero() && j.retryFrom.Before(since) {
		since = j.retryFrom
	}
	j.mu.Unlock()

	res, err := j.handler.Handle(ctx, command.ReconcileAwardsCommand{
		Since:      since,
		BatchLimit: j.config.BatchLimit,
	})

	applied, failed := 0, 0
	if res != nil {
		applied, failed = res.Applied, res.Failed
	}
	if j.recorder != nil {
		j.recorder.RecordReconcile(applied, failed, err)
	}

	j.mu.Lock()
	if err != nil || failed > 0 {
		j.retryFrom = since
	} else {
		j.retryFrom = time.Time{}
	}
	j.last = res
	j.mu.Unlock()

	if err != nil {
		return fmt.Errorf("reconcile awards since %s: %w", since.Format(time.RFC3339), err)
	}
	if failed > 0 {
		j.log.Warn("awards left for next run",
			logger.Int("failed", failed),
			logger.Time("since", since),
		)
	}
	return nil
}

// LastResult returns the outcome of the most recent run, or nil.
func (j *ReconcileAwardsJob) LastResult() *command.ReconcileAwardsResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
