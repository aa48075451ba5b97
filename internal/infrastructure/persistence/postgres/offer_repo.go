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
// OFFER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const offerColumns = "id, user_id, subject, role, proficiency, urgency, target_date, tags, created_at, updated_at"

// OfferRepository implements matching.OfferRepository for PostgreSQL.
type OfferRepository struct {
	conn *Connection
}

// NewOfferRepository creates a new OfferRepository.
func NewOfferRepository(conn *Connection) *OfferRepository {
	return &OfferRepository{conn: conn}
}

func scanOffer(row pgx.Row) (*matching.SubjectOffer, error) {
	var (
		o                        matching.SubjectOffer
		role, proficiency, urgcy string
		targetDate               *time.Time
		tags                     []string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Subject, &role, &proficiency, &urgcy, &targetDate, &tags, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Role = matching.Role(role)
	o.Proficiency = matching.Proficiency(proficiency)
	o.Urgency = matching.Urgency(urgcy)
	o.TargetDate = targetDate
	o.Tags = matching.Tags(tags)
	return &o, nil
}

func collectOffers(rows pgx.Rows) ([]*matching.SubjectOffer, error) {
	defer rows.Close()

	out := make([]*matching.SubjectOffer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func upsertOfferQuery(o *matching.SubjectOffer) (string, []any, error) {
	tags := []string(o.Tags)
	if tags == nil {
		tags = []string{}
	}
	return psql.Insert("subject_offers").
		Columns("id", "user_id", "subject", "subject_key", "role", "proficiency", "urgency", "target_date", "tags", "created_at", "updated_at").
		Values(o.ID, o.UserID, o.Subject, matching.NormalizeSubject(o.Subject), string(o.Role), string(o.Proficiency), string(o.Urgency), o.TargetDate, tags, o.CreatedAt, o.UpdatedAt).
		Suffix("ON CONFLICT ON CONSTRAINT " + constraintOfferPerKey + " DO UPDATE SET " +
			"subject = EXCLUDED.subject, proficiency = EXCLUDED.proficiency, urgency = EXCLUDED.urgency, " +
			"target_date = EXCLUDED.target_date, tags = EXCLUDED.tags, updated_at = EXCLUDED.updated_at " +
			"RETURNING " + offerColumns).
		ToSql()
}

// Upsert inserts the offer or updates the existing one with the same key.
// The stored id and created_at are kept on update.
func (r *OfferRepository) Upsert(ctx context.Context, o *matching.SubjectOffer) (*matching.SubjectOffer, error) {
	sql, args, err := upsertOfferQuery(o)
	if err != nil {
		return nil, err
	}
	stored, err := scanOffer(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError("matching", "UpsertOffer", err, nil)
	}
	return stored, nil
}

// GetByID returns an offer by id.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*matching.SubjectOffer, error) {
	o, err := scanOffer(r.conn.QueryRow(ctx, "SELECT "+offerColumns+" FROM subject_offers WHERE id = $1", id))
	if err != nil {
		return nil, mapError("matching", "GetOffer", err, shared.ErrOfferNotFound)
	}
	return o, nil
}

// Delete removes an offer.
func (r *OfferRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, "DELETE FROM subject_offers WHERE id = $1", id)
	if err != nil {
		return mapError("matching", "DeleteOffer", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrOfferNotFound
	}
	return nil
}

func userOffersQuery(userID string, role matching.Role) (string, []any, error) {
	b := psql.Select(offerColumns).From("subject_offers").Where(sq.Eq{"user_id": userID})
	if role != "" {
		b = b.Where(sq.Eq{"role": string(role)})
	}
	return b.OrderBy("seq").ToSql()
}

// ListByUser returns the user's offers in insertion order.
func (r *OfferRepository) ListByUser(ctx context.Context, userID string, role matching.Role) ([]*matching.SubjectOffer, error) {
	sql, args, err := userOffersQuery(userID, role)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("matching", "ListOffers", err, nil)
	}
	out, err := collectOffers(rows)
	if err != nil {
		return nil, mapError("matching", "ListOffers", err, nil)
	}
	return out, nil
}

func teachOffersQuery(subject string, urgency matching.Urgency) (string, []any, error) {
	b := psql.Select(offerColumns).From("subject_offers").
		Where(sq.Eq{"subject_key": matching.NormalizeSubject(subject), "role": string(matching.RoleTeach)})
	if urgency != "" {
		b = b.Where(sq.Eq{"urgency": string(urgency)})
	}
	return b.OrderBy("seq").ToSql()
}

// ListTeachOffers returns teach offers for a subject in insertion order.
func (r *OfferRepository) ListTeachOffers(ctx context.Context, subject string, urgency matching.Urgency) ([]*matching.SubjectOffer, error) {
	sql, args, err := teachOffersQuery(subject, urgency)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("matching", "ListTeachOffers", err, nil)
	}
	out, err := collectOffers(rows)
	if err != nil {
		return nil, mapError("matching", "ListTeachOffers", err, nil)
	}
	return out, nil
}
