package jobs

import (
	"context"
	"time"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/pkg/logger"
)

// LeaderboardWarmer rebuilds the points index from the store.
type LeaderboardWarmer interface {
	Warm(ctx context.Context, profiles reputation.ProfileRepository, size int) error
}

// WarmLeaderboardJob periodically rebuilds the leaderboard cache so drift
// from missed events does not accumulate.
type WarmLeaderboardJob struct {
	warmer   LeaderboardWarmer
	profiles reputation.ProfileRepository
	size     int
	timeout  time.Duration
	log      *logger.Logger
}

// NewWarmLeaderboardJob creates the job. size <= 0 lets the warmer pick.
func NewWarmLeaderboardJob(warmer LeaderboardWarmer, profiles reputation.ProfileRepository, size int, log *logger.Logger) *WarmLeaderboardJob {
	if log == nil {
		log = logger.Default()
	}
	return &WarmLeaderboardJob{
		warmer:   warmer,
		profiles: profiles,
		size:     size,
		timeout:  time.Minute,
		log:      log.With(logger.Component("job"), logger.String("job", "warm_leaderboard")),
	}
}

// Name returns the job name.
func (j *WarmLeaderboardJob) Name() string {
	return "warm_leaderboard"
}

// Description returns a human-readable description.
func (j *WarmLeaderboardJob) Description() string {
	return "Rebuilds the Redis points leaderboard from the store"
}

// Run executes the job.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.warmer.Warm(ctx, j.profiles, j.size)
}
