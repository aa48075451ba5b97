package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// Uniqueness of open matches is the partial index uniq_open_match; status
// changes are conditional UPDATEs on the expected current status.
// ══════════════════════════════════════════════════════════════════════════════

const matchColumns = "id, requester_id, helper_id, subject, status, message, scheduled_time, meeting_link, created_at, updated_at, responded_at, completed_at"

// MatchRepository implements matching.MatchRepository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

func scanMatch(row pgx.Row) (*matching.Match, error) {
	var (
		m      matching.Match
		status string
	)
	err := row.Scan(
		&m.ID, &m.RequesterID, &m.HelperID, &m.Subject, &status, &m.Message,
		&m.ScheduledTime, &m.MeetingLink, &m.CreatedAt, &m.UpdatedAt, &m.RespondedAt, &m.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = matching.MatchStatus(status)
	return &m, nil
}

func collectMatches(rows pgx.Rows) ([]*matching.Match, error) {
	defer rows.Close()

	out := make([]*matching.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func openStatusStrings() []string {
	out := make([]string, len(matching.OpenStatuses))
	for i, s := range matching.OpenStatuses {
		out[i] = string(s)
	}
	return out
}

// Create inserts a pending match. A concurrent open match for the same
// triple fails on uniq_open_match and surfaces as ErrOpenMatchExists.
func (r *MatchRepository) Create(ctx context.Context, m *matching.Match) error {
	sql, args, err := psql.Insert("matches").
		Columns("id", "requester_id", "helper_id", "subject", "subject_key", "status", "message", "meeting_link", "created_at", "updated_at").
		Values(m.ID, m.RequesterID, m.HelperID, m.Subject, matching.NormalizeSubject(m.Subject), string(m.Status), m.Message, m.MeetingLink, m.CreatedAt, m.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return mapError("matching", "CreateMatch", err, nil)
	}
	return nil
}

// GetByID returns a match by id.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*matching.Match, error) {
	m, err := scanMatch(r.conn.QueryRow(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = $1", id))
	if err != nil {
		return nil, mapError("matching", "GetMatch", err, shared.ErrMatchNotFound)
	}
	return m, nil
}

func transitionMatchQuery(id string, from, to matching.MatchStatus, at time.Time) (string, []any, error) {
	var respondedAt, completedAt *time.Time
	switch to {
	case matching.MatchStatusAccepted, matching.MatchStatusDeclined:
		respondedAt = &at
	case matching.MatchStatusCompleted:
		completedAt = &at
	}
	return psql.Update("matches").
		Set("status", string(to)).
		Set("updated_at", at).
		Set("responded_at", sq.Expr("COALESCE(?::timestamptz, responded_at)", respondedAt)).
		Set("completed_at", sq.Expr("COALESCE(?::timestamptz, completed_at)", completedAt)).
		Where(sq.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING " + matchColumns).
		ToSql()
}

// TransitionStatus moves the match from one status to another if it is
// still in from. Compare-and-swap on the status column.
func (r *MatchRepository) TransitionStatus(ctx context.Context, id string, from, to matching.MatchStatus, at time.Time) (*matching.Match, error) {
	if from.IsTerminal() {
		return nil, shared.ErrMatchTerminal
	}
	if !matching.CanTransition(from, to) {
		return nil, shared.NewDomainError("matching", "TransitionStatus", shared.ErrInvalidTransition,
			string(from)+" -> "+string(to)+" is not allowed")
	}

	sql, args, err := transitionMatchQuery(id, from, to, at)
	if err != nil {
		return nil, err
	}
	m, err := scanMatch(r.conn.QueryRow(ctx, sql, args...))
	if err == nil {
		return m, nil
	}
	if !IsNoRows(err) {
		return nil, mapError("matching", "TransitionStatus", err, nil)
	}

	current, gerr := r.GetByID(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	return nil, shared.NewDomainError("matching", "TransitionStatus", shared.ErrInvalidTransition,
		"expected "+string(from)+", found "+string(current.Status))
}

// SetSchedule writes schedule fields on an accepted match.
func (r *MatchRepository) SetSchedule(ctx context.Context, id string, scheduled time.Time, link string, at time.Time) (*matching.Match, error) {
	sql, args, err := psql.Update("matches").
		Set("scheduled_time", scheduled).
		Set("meeting_link", link).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": string(matching.MatchStatusAccepted)}).
		Suffix("RETURNING " + matchColumns).
		ToSql()
	if err != nil {
		return nil, err
	}

	m, err := scanMatch(r.conn.QueryRow(ctx, sql, args...))
	if err == nil {
		return m, nil
	}
	if !IsNoRows(err) {
		return nil, mapError("matching", "SetSchedule", err, nil)
	}
	if _, gerr := r.GetByID(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, shared.ErrMatchNotAccepted
}

// HasOpenMatch reports whether a pending or accepted match exists for the triple.
func (r *MatchRepository) HasOpenMatch(ctx context.Context, requesterID, helperID, subject string) (bool, error) {
	sql, args, err := psql.Select("1").From("matches").
		Where(sq.Eq{
			"requester_id": requesterID,
			"helper_id":    helperID,
			"subject_key":  matching.NormalizeSubject(subject),
			"status":       openStatusStrings(),
		}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, mapError("matching", "HasOpenMatch", err, nil)
	}
	return exists, nil
}

func userMatchesQuery(userID string, status matching.MatchStatus) (string, []any, error) {
	b := psql.Select(matchColumns).From("matches").
		Where(sq.Or{sq.Eq{"requester_id": userID}, sq.Eq{"helper_id": userID}})
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	return b.OrderBy("seq DESC").ToSql()
}

// ListByUser returns matches where the user is either party, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, userID string, status matching.MatchStatus) ([]*matching.Match, error) {
	sql, args, err := userMatchesQuery(userID, status)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("matching", "ListMatches", err, nil)
	}
	out, err := collectMatches(rows)
	if err != nil {
		return nil, mapError("matching", "ListMatches", err, nil)
	}
	return out, nil
}

func matchesByStatusQuery(statuses []matching.MatchStatus, since time.Time, limit int) (string, []any, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	b := psql.Select(matchColumns).From("matches").
		Where(sq.Eq{"status": names}).
		Where(sq.GtOrEq{"updated_at": since}).
		OrderBy("seq DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

// ListByStatus returns matches in the given statuses updated at or after since.
func (r *MatchRepository) ListByStatus(ctx context.Context, statuses []matching.MatchStatus, since time.Time, limit int) ([]*matching.Match, error) {
	if len(statuses) == 0 {
		return []*matching.Match{}, nil
	}
	sql, args, err := matchesByStatusQuery(statuses, since, limit)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("matching", "ListByStatus", err, nil)
	}
	out, err := collectMatches(rows)
	if err != nil {
		return nil, mapError("matching", "ListByStatus", err, nil)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const sessionColumns = "id, match_id, title, subject, host_id, participant_ids, scheduled_time, duration_minutes, meeting_link, status, created_at, updated_at"

// SessionRepository implements matching.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

func scanSession(row pgx.Row) (*matching.StudySession, error) {
	var (
		s       matching.StudySession
		minutes int
		status  string
	)
	err := row.Scan(&s.ID, &s.MatchID, &s.Title, &s.Subject, &s.HostID, &s.ParticipantIDs,
		&s.ScheduledTime, &minutes, &s.MeetingLink, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Duration = time.Duration(minutes) * time.Minute
	s.Status = matching.SessionStatus(status)
	return &s, nil
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *matching.StudySession) error {
	sql, args, err := psql.Insert("study_sessions").
		Columns("id", "match_id", "title", "subject", "host_id", "participant_ids", "scheduled_time", "duration_minutes", "meeting_link", "status", "created_at", "updated_at").
		Values(s.ID, s.MatchID, s.Title, s.Subject, s.HostID, s.ParticipantIDs, s.ScheduledTime, int(s.Duration/time.Minute), s.MeetingLink, string(s.Status), s.CreatedAt, s.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return mapError("matching", "CreateSession", err, nil)
	}
	return nil
}

// GetByID returns a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*matching.StudySession, error) {
	s, err := scanSession(r.conn.QueryRow(ctx, "SELECT "+sessionColumns+" FROM study_sessions WHERE id = $1", id))
	if err != nil {
		return nil, mapError("matching", "GetSession", err, shared.ErrSessionNotFound)
	}
	return s, nil
}

// TransitionStatus moves a session from one status to another if it is still in from.
func (r *SessionRepository) TransitionStatus(ctx context.Context, id string, from, to matching.SessionStatus, at time.Time) (*matching.StudySession, error) {
	if !matching.CanTransitionSession(from, to) {
		return nil, shared.ErrSessionTransition
	}

	sql, args, err := psql.Update("study_sessions").
		Set("status", string(to)).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": string(from)}).
		Suffix("RETURNING " + sessionColumns).
		ToSql()
	if err != nil {
		return nil, err
	}

	s, err := scanSession(r.conn.QueryRow(ctx, sql, args...))
	if err == nil {
		return s, nil
	}
	if !IsNoRows(err) {
		return nil, mapError("matching", "TransitionSession", err, nil)
	}
	if _, gerr := r.GetByID(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, shared.ErrSessionTransition
}

// ListByMatch returns the sessions created for a match, oldest first.
func (r *SessionRepository) ListByMatch(ctx context.Context, matchID string) ([]*matching.StudySession, error) {
	rows, err := r.conn.Query(ctx, "SELECT "+sessionColumns+" FROM study_sessions WHERE match_id = $1 ORDER BY seq", matchID)
	if err != nil {
		return nil, mapError("matching", "ListSessions", err, nil)
	}
	defer rows.Close()

	out := make([]*matching.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, mapError("matching", "ListSessions", err, nil)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("matching", "ListSessions", err, nil)
	}
	return out, nil
}
