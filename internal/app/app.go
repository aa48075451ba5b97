// Package app assembles the command and query handlers over a store.
// Both binaries and the HTTP tests build the service graph through it.
package app

import (
	"github.com/campus-hub/study-match/internal/application/command"
	"github.com/campus-hub/study-match/internal/application/query"
	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/study-match/pkg/logger"
	"github.com/campus-hub/study-match/pkg/retry"
)

// Repositories is the store adapter seen by the application layer.
type Repositories struct {
	Offers        matching.OfferRepository
	Matches       matching.MatchRepository
	Sessions      matching.SessionRepository
	Ratings       reputation.RatingRepository
	Profiles      reputation.ProfileRepository
	Notifications notification.Repository
}

// MemoryRepositories exposes an in-process store.
func MemoryRepositories(s *memory.Store) Repositories {
	return Repositories{
		Offers:        s.Offers(),
		Matches:       s.Matches(),
		Sessions:      s.Sessions(),
		Ratings:       s.Ratings(),
		Profiles:      s.Profiles(),
		Notifications: s.Notifications(),
	}
}

// PostgresRepositories exposes the Postgres store.
func PostgresRepositories(s *postgres.Store) Repositories {
	return Repositories{
		Offers:        s.Offers(),
		Matches:       s.Matches(),
		Sessions:      s.Sessions(),
		Ratings:       s.Ratings(),
		Profiles:      s.Profiles(),
		Notifications: s.Notifications(),
	}
}

// Options carries the collaborators of the handlers.
type Options struct {
	Publisher shared.EventPublisher

	// Leaderboard is optional. Nil serves the leaderboard from the store.
	Leaderboard reputation.LeaderboardCache

	// Retrier retries Unavailable point awards. Nil uses retry.StoreRetrier.
	Retrier *retry.Retrier

	Clock  shared.Clock
	Logger *logger.Logger
}

// Handlers is the full operation surface.
type Handlers struct {
	Ledger     *service.Ledger
	Emitter    *service.Emitter
	Dispatcher *service.Dispatcher

	CreateMatch    *command.CreateMatchRequestHandler
	RespondToMatch *command.RespondToMatchHandler
	Schedule       *command.ScheduleSessionHandler
	CompleteMatch  *command.CompleteMatchHandler
	SubmitRating   *command.SubmitRatingHandler
	Sessions       *command.SessionHandler
	UpsertOffer    *command.UpsertOfferHandler
	RemoveOffer    *command.RemoveOfferHandler
	AwardPoints    *command.AwardActivityPointsHandler
	EmitNotice     *command.EmitNotificationHandler
	MarkRead       *command.MarkNotificationsReadHandler
	Reconcile      *command.ReconcileAwardsHandler

	FindCandidates *query.FindCandidatesHandler
	CanRate        *query.CanRateHandler
	UserMatches    *query.GetUserMatchesHandler
	UserRatings    *query.GetUserRatingsHandler
	Leaderboard    *query.GetLeaderboardHandler
	Notifications  *query.GetNotificationsHandler
	ListOffers     *query.ListOffersHandler
}

// Build wires every handler over repos.
func Build(repos Repositories, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Retrier == nil {
		opts.Retrier = retry.StoreRetrier(shared.IsRetryable)
	}
	log := opts.Logger

	ledger := service.NewLedger(repos.Profiles, opts.Publisher, opts.Retrier, log)
	emitter := service.NewEmitter(repos.Notifications, opts.Publisher, opts.Clock, log)
	dispatcher := service.NewDispatcher(ledger, emitter, opts.Publisher, log)
	complete := command.NewCompleteMatchHandler(repos.Matches, dispatcher, opts.Clock, log)

	return &Handlers{
		Ledger:     ledger,
		Emitter:    emitter,
		Dispatcher: dispatcher,

		CreateMatch:    command.NewCreateMatchRequestHandler(repos.Matches, dispatcher, opts.Clock),
		RespondToMatch: command.NewRespondToMatchHandler(repos.Matches, dispatcher, opts.Clock),
		Schedule:       command.NewScheduleSessionHandler(repos.Matches, repos.Sessions, dispatcher, opts.Clock),
		CompleteMatch:  complete,
		SubmitRating:   command.NewSubmitRatingHandler(repos.Matches, repos.Ratings, dispatcher, opts.Clock),
		Sessions:       command.NewSessionHandler(repos.Sessions, complete, dispatcher, opts.Clock),
		UpsertOffer:    command.NewUpsertOfferHandler(repos.Offers, opts.Clock),
		RemoveOffer:    command.NewRemoveOfferHandler(repos.Offers),
		AwardPoints:    command.NewAwardActivityPointsHandler(ledger, opts.Clock),
		EmitNotice:     command.NewEmitNotificationHandler(emitter),
		MarkRead:       command.NewMarkNotificationsReadHandler(repos.Notifications),
		Reconcile:      command.NewReconcileAwardsHandler(repos.Matches, repos.Ratings, ledger, opts.Clock, log),

		FindCandidates: query.NewFindCandidatesHandler(repos.Offers, repos.Matches, repos.Profiles),
		CanRate:        query.NewCanRateHandler(repos.Matches, repos.Ratings),
		UserMatches:    query.NewGetUserMatchesHandler(repos.Matches, repos.Profiles),
		UserRatings:    query.NewGetUserRatingsHandler(repos.Ratings, repos.Profiles),
		Leaderboard:    query.NewGetLeaderboardHandler(repos.Profiles, opts.Leaderboard, log),
		Notifications:  query.NewGetNotificationsHandler(repos.Notifications),
		ListOffers:     query.NewListOffersHandler(repos.Offers),
	}
}
