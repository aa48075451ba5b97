package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/study-match/internal/domain/reputation"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATING REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	ratingColumns  = "id, match_id, rater_id, rated_user_id, score, feedback, created_at"
	profileColumns = "user_id, name, university, rating_sum, total_ratings, points, updated_at"
)

// RatingRepository implements reputation.RatingRepository for PostgreSQL.
type RatingRepository struct {
	conn *Connection
}

// NewRatingRepository creates a new RatingRepository.
func NewRatingRepository(conn *Connection) *RatingRepository {
	return &RatingRepository{conn: conn}
}

func scanRating(row pgx.Row) (*reputation.Rating, error) {
	var r reputation.Rating
	if err := row.Scan(&r.ID, &r.MatchID, &r.RaterID, &r.RatedUserID, &r.Score, &r.Feedback, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanProfile(row pgx.Row) (*reputation.Profile, error) {
	var p reputation.Profile
	if err := row.Scan(&p.UserID, &p.Name, &p.University, &p.RatingSum, &p.TotalRatings, &p.Points, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectRatings(rows pgx.Rows) ([]*reputation.Rating, error) {
	defer rows.Close()

	out := make([]*reputation.Rating, 0)
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// bumpReputationSQL increments the running sum and count in one statement;
// the row lock taken by the upsert serializes concurrent ratings.
const bumpReputationSQL = `
INSERT INTO profiles (user_id, rating_sum, total_ratings, updated_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (user_id) DO UPDATE SET
    rating_sum = profiles.rating_sum + EXCLUDED.rating_sum,
    total_ratings = profiles.total_ratings + 1,
    updated_at = EXCLUDED.updated_at
RETURNING ` + profileColumns

// Submit inserts the rating and updates the rated user's aggregate in one
// transaction. A second rating of the same match by the same rater fails on
// uniq_rating_rater_match.
func (r *RatingRepository) Submit(ctx context.Context, rating *reputation.Rating) (*reputation.Profile, error) {
	insertSQL, args, err := psql.Insert("ratings").
		Columns("id", "match_id", "rater_id", "rated_user_id", "score", "feedback", "created_at").
		Values(rating.ID, rating.MatchID, rating.RaterID, rating.RatedUserID, rating.Score, rating.Feedback, rating.CreatedAt).
		ToSql()
	if err != nil {
		return nil, err
	}

	var profile *reputation.Profile
	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			return err
		}
		p, err := scanProfile(tx.QueryRow(ctx, bumpReputationSQL, rating.RatedUserID, rating.Score, rating.CreatedAt))
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, mapError("reputation", "SubmitRating", err, nil)
	}
	return profile, nil
}

// Exists reports whether the rater already rated the match.
func (r *RatingRepository) Exists(ctx context.Context, raterID, matchID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM ratings WHERE rater_id = $1 AND match_id = $2)",
		raterID, matchID,
	).Scan(&exists)
	if err != nil {
		return false, mapError("reputation", "RatingExists", err, nil)
	}
	return exists, nil
}

// ListByRatedUser returns received ratings, newest first.
func (r *RatingRepository) ListByRatedUser(ctx context.Context, userID string, limit int) ([]*reputation.Rating, error) {
	b := psql.Select(ratingColumns).From("ratings").
		Where(sq.Eq{"rated_user_id": userID}).
		OrderBy("seq DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.list(ctx, "ListRatings", b)
}

func bonusEligibleQuery(since time.Time, limit int) sq.SelectBuilder {
	b := psql.Select(ratingColumns).From("ratings").
		Where(sq.GtOrEq{"score": reputation.BonusThreshold}).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("seq DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

// ListBonusEligible returns ratings that earn the rated user a bonus.
func (r *RatingRepository) ListBonusEligible(ctx context.Context, since time.Time, limit int) ([]*reputation.Rating, error) {
	return r.list(ctx, "ListBonusEligible", bonusEligibleQuery(since, limit))
}

func (r *RatingRepository) list(ctx context.Context, op string, b sq.SelectBuilder) ([]*reputation.Rating, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("reputation", op, err, nil)
	}
	out, err := collectRatings(rows)
	if err != nil {
		return nil, mapError("reputation", op, err, nil)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements reputation.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// Get returns the profile, or an empty one for a user never seen before.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*reputation.Profile, error) {
	p, err := scanProfile(r.conn.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID))
	if IsNoRows(err) {
		return &reputation.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, mapError("reputation", "GetProfile", err, nil)
	}
	return p, nil
}

// GetMany returns known profiles keyed by user id.
func (r *ProfileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*reputation.Profile, error) {
	out := make(map[string]*reputation.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	sql, args, err := psql.Select(profileColumns).From("profiles").Where(sq.Eq{"user_id": userIDs}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("reputation", "GetProfiles", err, nil)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("reputation", "GetProfiles", err, nil)
		}
		out[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("reputation", "GetProfiles", err, nil)
	}
	return out, nil
}

// UpsertBasics writes name and university without touching counters.
func (r *ProfileRepository) UpsertBasics(ctx context.Context, userID, name, university string) error {
	sql, args, err := psql.Insert("profiles").
		Columns("user_id", "name", "university", "updated_at").
		Values(userID, name, university, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, university = EXCLUDED.university, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return mapError("reputation", "UpsertProfile", err, nil)
	}
	return nil
}

// TopByPoints returns profiles ordered by points, ties broken by user id.
func (r *ProfileRepository) TopByPoints(ctx context.Context, limit int) ([]*reputation.Profile, error) {
	b := psql.Select(profileColumns).From("profiles").OrderBy("points DESC", "user_id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("reputation", "TopByPoints", err, nil)
	}
	defer rows.Close()

	out := make([]*reputation.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("reputation", "TopByPoints", err, nil)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("reputation", "TopByPoints", err, nil)
	}
	return out, nil
}

const (
	recordAwardSQL = `
INSERT INTO point_awards (user_id, reason, source_id, amount, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, reason, source_id) DO NOTHING`

	addPointsSQL = `
INSERT INTO profiles (user_id, points, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
    points = profiles.points + EXCLUDED.points,
    updated_at = EXCLUDED.updated_at
RETURNING points`
)

// ApplyAward records the award in point_awards and adds its amount to the
// profile in the same transaction. A repeated key changes nothing.
func (r *ProfileRepository) ApplyAward(ctx context.Context, a reputation.Award) (bool, int, error) {
	var (
		applied bool
		total   int
	)
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, recordAwardSQL, a.UserID, string(a.Reason), a.SourceID, a.Amount, a.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			err := tx.QueryRow(ctx, "SELECT points FROM profiles WHERE user_id = $1", a.UserID).Scan(&total)
			if IsNoRows(err) {
				return nil
			}
			return err
		}
		applied = true
		return tx.QueryRow(ctx, addPointsSQL, a.UserID, a.Amount, a.CreatedAt).Scan(&total)
	})
	if err != nil {
		return false, 0, mapError("reputation", "ApplyAward", err, nil)
	}
	return applied, total, nil
}
