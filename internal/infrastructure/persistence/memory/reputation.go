package memory

import (
	"context"
	"sort"
	"time"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// RatingRepository implements reputation.RatingRepository.
type RatingRepository struct{ s *Store }

// Submit inserts the rating and bumps the rated user's (sum, count) pair in
// one critical section.
func (r *RatingRepository) Submit(_ context.Context, rating *reputation.Rating) (*reputation.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := ratingKey{raterID: rating.RaterID, matchID: rating.MatchID}
	if _, exists := r.s.ratingKeys[key]; exists {
		return nil, shared.ErrAlreadyRated
	}

	stored := *rating
	r.s.ratings[stored.ID] = &ratingRow{seq: r.s.next(), rating: &stored}
	r.s.ratingKeys[key] = stored.ID

	p := r.s.profileLocked(rating.RatedUserID)
	*p = p.WithRating(rating.Score)
	p.UpdatedAt = rating.CreatedAt

	out := *p
	return &out, nil
}

// Exists reports whether the rater already rated the match.
func (r *RatingRepository) Exists(_ context.Context, raterID, matchID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.ratingKeys[ratingKey{raterID: raterID, matchID: matchID}]
	return ok, nil
}

func (r *RatingRepository) collect(pred func(*reputation.Rating) bool, limit int) []*reputation.Rating {
	rows := make([]*ratingRow, 0)
	for _, row := range r.s.ratings {
		if pred(row.rating) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]*reputation.Rating, len(rows))
	for i, row := range rows {
		c := *row.rating
		out[i] = &c
	}
	return out
}

// ListByRatedUser returns ratings received by the user, newest first.
func (r *RatingRepository) ListByRatedUser(_ context.Context, userID string, limit int) ([]*reputation.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(x *reputation.Rating) bool { return x.RatedUserID == userID }, limit), nil
}

// ListBonusEligible returns ratings that earn a bonus, created at or after since.
func (r *RatingRepository) ListBonusEligible(_ context.Context, since time.Time, limit int) ([]*reputation.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(x *reputation.Rating) bool {
		return x.EarnsBonus() && !x.CreatedAt.Before(since)
	}, limit), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILES + POINT LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements reputation.ProfileRepository.
type ProfileRepository struct{ s *Store }

// profileLocked returns the stored profile, creating it if needed. Caller holds the write lock.
func (s *Store) profileLocked(userID string) *reputation.Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = &reputation.Profile{UserID: userID}
		s.profiles[userID] = p
	}
	return p
}

// Get returns the profile or an empty one for unknown users.
func (r *ProfileRepository) Get(_ context.Context, userID string) (*reputation.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if p, ok := r.s.profiles[userID]; ok {
		out := *p
		return &out, nil
	}
	return &reputation.Profile{UserID: userID}, nil
}

// GetMany returns known profiles keyed by user id.
func (r *ProfileRepository) GetMany(_ context.Context, userIDs []string) (map[string]*reputation.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*reputation.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := r.s.profiles[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

// UpsertBasics sets name and university.
func (r *ProfileRepository) UpsertBasics(_ context.Context, userID, name, university string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.s.profileLocked(userID)
	p.Name = name
	p.University = university
	return nil
}

// TopByPoints returns profiles ordered by points desc, then user id.
func (r *ProfileRepository) TopByPoints(_ context.Context, limit int) ([]*reputation.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*reputation.Profile, 0, len(r.s.profiles))
	for _, p := range r.s.profiles {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ApplyAward adds points once per award key.
func (r *ProfileRepository) ApplyAward(_ context.Context, a reputation.Award) (bool, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.s.profileLocked(a.UserID)
	if _, done := r.s.awards[a.Key()]; done {
		return false, p.Points, nil
	}
	r.s.awards[a.Key()] = struct{}{}
	p.Points += a.Amount
	p.UpdatedAt = a.CreatedAt
	return true, p.Points, nil
}
