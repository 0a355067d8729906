package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	// FindExpired returns scheduled sessions whose end time is at or before cutoff.
	FindExpired(ctx context.Context, cutoff time.Time) ([]model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// Update applies params only while the session is still scheduled; nil means no row matched.
	Update(ctx context.Context, id string, params model.UpdateSessionParams) (*model.Session, error)
	// TransitionStatus moves the session to `to` only if its current status is in `from`.
	TransitionStatus(ctx context.Context, id string, from []model.SessionStatus, to model.SessionStatus) (bool, error)
	AddParticipant(ctx context.Context, id string, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, id string, userID string) error
	UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = $1`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	ds := dialect.From("sessions")

	conds := goqu.Ex{}
	if filter.ProfessionalID != "" {
		conds["professional_id"] = filter.ProfessionalID
	}
	if filter.Status != "" {
		conds["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		conds["category"] = string(filter.Category)
	}
	if len(conds) > 0 {
		ds = ds.Where(conds)
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("start_time").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("start_time").Lt(*filter.To))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.
		Order(goqu.C("start_time").Asc(), goqu.C("id").Asc()).
		Limit(limit).
		Offset(offset).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var sessions []model.Session
	err = r.db.SelectContext(ctx, &sessions, query, args...)
	return sessions, err
}

func (r *sessionRepo) FindExpired(ctx context.Context, cutoff time.Time) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE status = 'scheduled'
		AND start_time + duration * INTERVAL '1 minute' <= $1
		ORDER BY start_time ASC, id ASC
	`, cutoff)
	return sessions, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions
			(professional_id, title, description, start_time, duration,
			 max_participants, price, category, location, meeting_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`, params.ProfessionalID, params.Title, params.Description, params.StartTime, params.Duration,
		params.MaxParticipants, params.Price, params.Category, params.Location, params.MeetingLink)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Update(ctx context.Context, id string, params model.UpdateSessionParams) (*model.Session, error) {
	record := goqu.Record{"updated_at": time.Now()}
	if params.Title != nil {
		record["title"] = *params.Title
	}
	if params.Description != nil {
		record["description"] = *params.Description
	}
	if params.StartTime != nil {
		record["start_time"] = *params.StartTime
	}
	if params.Duration != nil {
		record["duration"] = *params.Duration
	}
	if params.MaxParticipants != nil {
		record["max_participants"] = *params.MaxParticipants
	}
	if params.Price != nil {
		record["price"] = *params.Price
	}
	if params.Category != nil {
		record["category"] = string(*params.Category)
	}
	if params.Location != nil {
		record["location"] = *params.Location
	}
	if params.MeetingLink != nil {
		record["meeting_link"] = *params.MeetingLink
	}

	query, args, err := dialect.Update("sessions").
		Set(record).
		Where(goqu.Ex{"id": id, "status": string(model.SessionStatusScheduled)}).
		Returning(goqu.Star()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var session model.Session
	err = r.db.GetContext(ctx, &session, query, args...)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) TransitionStatus(ctx context.Context, id string, from []model.SessionStatus, to model.SessionStatus) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(toStrings(from)), to))
}

func (r *sessionRepo) AddParticipant(ctx context.Context, id string, userID string) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `
		UPDATE sessions SET
			participants = array_append(participants, $2::text),
			updated_at = NOW()
		WHERE id = $1
		AND status = 'scheduled'
		AND NOT ($2::text = ANY(participants))
		AND cardinality(participants) < max_participants
	`, id, userID))
}

func (r *sessionRepo) RemoveParticipant(ctx context.Context, id string, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			participants = array_remove(participants, $2::text),
			updated_at = NOW()
		WHERE id = $1
	`, id, userID)
	return err
}

func (r *sessionRepo) UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			average_rating = $2,
			review_count = $3,
			updated_at = NOW()
		WHERE id = $1
	`, id, summary.AverageRating, summary.ReviewCount)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
