// Package memory implements the store ports in process. Every invariant the
// Postgres adapter enforces with constraints is enforced here under a single
// mutex, so the application layer behaves the same on both.
package memory

import (
	"sync"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
)

// Store holds all tables. Use the accessor methods to get typed repositories.
type Store struct {
	mu  sync.RWMutex
	seq int64

	offers    map[string]*offerRow
	offerKeys map[matching.OfferKey]string

	matches     map[string]*matchRow
	openMatches map[matching.MatchKey]string

	sessions map[string]*sessionRow

	ratings    map[string]*ratingRow
	ratingKeys map[ratingKey]string

	profiles map[string]*reputation.Profile
	awards   map[reputation.AwardKey]struct{}

	notifications map[string]*notificationRow
}

type offerRow struct {
	seq   int64
	offer *matching.SubjectOffer
}

type matchRow struct {
	seq   int64
	match *matching.Match
}

type sessionRow struct {
	seq     int64
	session *matching.StudySession
}

type ratingRow struct {
	seq    int64
	rating *reputation.Rating
}

type notificationRow struct {
	seq int64
	n   *notification.Notification
}

type ratingKey struct {
	raterID string
	matchID string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		offers:        make(map[string]*offerRow),
		offerKeys:     make(map[matching.OfferKey]string),
		matches:       make(map[string]*matchRow),
		openMatches:   make(map[matching.MatchKey]string),
		sessions:      make(map[string]*sessionRow),
		ratings:       make(map[string]*ratingRow),
		ratingKeys:    make(map[ratingKey]string),
		profiles:      make(map[string]*reputation.Profile),
		awards:        make(map[reputation.AwardKey]struct{}),
		notifications: make(map[string]*notificationRow),
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// Offers returns the offer repository.
func (s *Store) Offers() *OfferRepository { return &OfferRepository{s: s} }

// Matches returns the match repository.
func (s *Store) Matches() *MatchRepository { return &MatchRepository{s: s} }

// Sessions returns the study session repository.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Ratings returns the rating repository.
func (s *Store) Ratings() *RatingRepository { return &RatingRepository{s: s} }

// Profiles returns the profile repository and point ledger.
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Notifications returns the notification repository.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

var (
	_ matching.OfferRepository     = (*OfferRepository)(nil)
	_ matching.MatchRepository     = (*MatchRepository)(nil)
	_ matching.SessionRepository   = (*SessionRepository)(nil)
	_ reputation.RatingRepository  = (*RatingRepository)(nil)
	_ reputation.ProfileRepository = (*ProfileRepository)(nil)
	_ notification.Repository      = (*NotificationRepository)(nil)
)
