package memory

import (
	"context"
	"sort"
	"time"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OFFERS
// ══════════════════════════════════════════════════════════════════════════════

// OfferRepository implements matching.OfferRepository.
type OfferRepository struct{ s *Store }

func cloneOffer(o *matching.SubjectOffer) *matching.SubjectOffer {
	c := *o
	c.Tags = append(matching.Tags(nil), o.Tags...)
	if o.TargetDate != nil {
		t := *o.TargetDate
		c.TargetDate = &t
	}
	return &c
}

// Upsert inserts or replaces the offer for its (user, subject, role) key.
func (r *OfferRepository) Upsert(_ context.Context, offer *matching.SubjectOffer) (*matching.SubjectOffer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := offer.Key()
	if id, ok := r.s.offerKeys[key]; ok {
		row := r.s.offers[id]
		updated := cloneOffer(offer)
		updated.ID = id
		updated.CreatedAt = row.offer.CreatedAt
		row.offer = updated
		return cloneOffer(updated), nil
	}

	stored := cloneOffer(offer)
	r.s.offers[stored.ID] = &offerRow{seq: r.s.next(), offer: stored}
	r.s.offerKeys[key] = stored.ID
	return cloneOffer(stored), nil
}

// GetByID returns an offer by id.
func (r *OfferRepository) GetByID(_ context.Context, id string) (*matching.SubjectOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.offers[id]
	if !ok {
		return nil, shared.ErrOfferNotFound
	}
	return cloneOffer(row.offer), nil
}

// Delete removes an offer.
func (r *OfferRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.offers[id]
	if !ok {
		return shared.ErrOfferNotFound
	}
	delete(r.s.offerKeys, row.offer.Key())
	delete(r.s.offers, id)
	return nil
}

func (r *OfferRepository) scan(pred func(*matching.SubjectOffer) bool) []*matching.SubjectOffer {
	rows := make([]*offerRow, 0)
	for _, row := range r.s.offers {
		if pred(row.offer) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*matching.SubjectOffer, len(rows))
	for i, row := range rows {
		out[i] = cloneOffer(row.offer)
	}
	return out
}

// ListByUser returns the user's offers in insertion order.
func (r *OfferRepository) ListByUser(_ context.Context, userID string, role matching.Role) ([]*matching.SubjectOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.scan(func(o *matching.SubjectOffer) bool {
		return o.UserID == userID && (role == "" || o.Role == role)
	}), nil
}

// ListTeachOffers returns teach offers for a subject in insertion order.
func (r *OfferRepository) ListTeachOffers(_ context.Context, subject string, urgency matching.Urgency) ([]*matching.SubjectOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := matching.NormalizeSubject(subject)
	return r.scan(func(o *matching.SubjectOffer) bool {
		return o.Role == matching.RoleTeach &&
			matching.NormalizeSubject(o.Subject) == want &&
			(urgency == "" || o.Urgency == urgency)
	}), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHES
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements matching.MatchRepository.
type MatchRepository struct{ s *Store }

// Create inserts a pending match. The open-match check and the insert happen
// under the same write lock.
func (r *MatchRepository) Create(_ context.Context, m *matching.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := m.Key()
	if _, exists := r.s.openMatches[key]; exists {
		return shared.ErrOpenMatchExists
	}
	r.s.matches[m.ID] = &matchRow{seq: r.s.next(), match: m.Clone()}
	if !m.Status.IsTerminal() {
		r.s.openMatches[key] = m.ID
	}
	return nil
}

// GetByID returns a match by id.
func (r *MatchRepository) GetByID(_ context.Context, id string) (*matching.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.matches[id]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	return row.match.Clone(), nil
}

// TransitionStatus moves a match from one status to another if it is still in from.
func (r *MatchRepository) TransitionStatus(_ context.Context, id string, from, to matching.MatchStatus, at time.Time) (*matching.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.matches[id]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	if row.match.Status != from {
		return nil, shared.NewDomainError("matching", "TransitionStatus", shared.ErrInvalidTransition,
			"expected "+string(from)+", found "+string(row.match.Status))
	}

	next := row.match.Clone()
	if err := next.Apply(to, at); err != nil {
		return nil, err
	}
	row.match = next
	if to.IsTerminal() {
		delete(r.s.openMatches, next.Key())
	}
	return next.Clone(), nil
}

// SetSchedule writes schedule fields on an accepted match.
func (r *MatchRepository) SetSchedule(_ context.Context, id string, scheduled time.Time, link string, at time.Time) (*matching.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.matches[id]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	if row.match.Status != matching.MatchStatusAccepted {
		return nil, shared.ErrMatchNotAccepted
	}
	next := row.match.Clone()
	next.ScheduledTime = &scheduled
	next.MeetingLink = link
	next.UpdatedAt = at
	row.match = next
	return next.Clone(), nil
}

// HasOpenMatch reports whether a pending or accepted match exists for the triple.
func (r *MatchRepository) HasOpenMatch(_ context.Context, requesterID, helperID, subject string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.openMatches[matching.MatchKey{
		RequesterID: requesterID,
		HelperID:    helperID,
		Subject:     matching.NormalizeSubject(subject),
	}]
	return ok, nil
}

func (r *MatchRepository) collect(pred func(*matching.Match) bool) []*matching.Match {
	rows := make([]*matchRow, 0)
	for _, row := range r.s.matches {
		if pred(row.match) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]*matching.Match, len(rows))
	for i, row := range rows {
		out[i] = row.match.Clone()
	}
	return out
}

// ListByUser returns matches where the user is either party, newest first.
func (r *MatchRepository) ListByUser(_ context.Context, userID string, status matching.MatchStatus) ([]*matching.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.collect(func(m *matching.Match) bool {
		return m.IsParty(userID) && (status == "" || m.Status == status)
	}), nil
}

// ListByStatus returns matches in the given statuses updated at or after since.
func (r *MatchRepository) ListByStatus(_ context.Context, statuses []matching.MatchStatus, since time.Time, limit int) ([]*matching.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := make(map[matching.MatchStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := r.collect(func(m *matching.Match) bool {
		return want[m.Status] && !m.UpdatedAt.Before(since)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements matching.SessionRepository.
type SessionRepository struct{ s *Store }

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, sess *matching.StudySession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.sessions[sess.ID] = &sessionRow{seq: r.s.next(), session: sess.Clone()}
	return nil
}

// GetByID returns a session by id.
func (r *SessionRepository) GetByID(_ context.Context, id string) (*matching.StudySession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return row.session.Clone(), nil
}

// TransitionStatus moves a session from one status to another if it is still in from.
func (r *SessionRepository) TransitionStatus(_ context.Context, id string, from, to matching.SessionStatus, at time.Time) (*matching.StudySession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	if row.session.Status != from || !matching.CanTransitionSession(from, to) {
		return nil, shared.ErrSessionTransition
	}
	next := row.session.Clone()
	next.Status = to
	next.UpdatedAt = at
	row.session = next
	return next.Clone(), nil
}

// ListByMatch returns the sessions created for a match, oldest first.
func (r *SessionRepository) ListByMatch(_ context.Context, matchID string) ([]*matching.StudySession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*sessionRow, 0)
	for _, row := range r.s.sessions {
		if row.session.MatchID == matchID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*matching.StudySession, len(rows))
	for i, row := range rows {
		out[i] = row.session.Clone()
	}
	return out, nil
}
