package postgres

import (
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
)

var (
	_ matching.OfferRepository     = (*OfferRepository)(nil)
	_ matching.MatchRepository     = (*MatchRepository)(nil)
	_ matching.SessionRepository   = (*SessionRepository)(nil)
	_ reputation.RatingRepository  = (*RatingRepository)(nil)
	_ reputation.ProfileRepository = (*ProfileRepository)(nil)
	_ notification.Repository      = (*NotificationRepository)(nil)
)

// Store groups the repositories sharing one connection pool.
type Store struct {
	conn *Connection
}

// NewStore wraps an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Conn returns the underlying connection.
func (s *Store) Conn() *Connection { return s.conn }

func (s *Store) Offers() *OfferRepository { return NewOfferRepository(s.conn) }

func (s *Store) Matches() *MatchRepository { return NewMatchRepository(s.conn) }

func (s *Store) Sessions() *SessionRepository { return NewSessionRepository(s.conn) }

func (s *Store) Ratings() *RatingRepository { return NewRatingRepository(s.conn) }

func (s *Store) Profiles() *ProfileRepository { return NewProfileRepository(s.conn) }

func (s *Store) Notifications() *NotificationRepository { return NewNotificationRepository(s.conn) }
