package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

type BookingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error)
	// FindBySession returns bookings whose service snapshot references the session
	// and whose status is one of statuses.
	FindBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) ([]model.Booking, error)
	CountBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) (int, error)
	// HasActiveForClient reports whether the client holds a pending or confirmed
	// booking for the session.
	HasActiveForClient(ctx context.Context, sessionID, clientID string) (bool, error)
	// TransitionStatus moves the booking to `to` only if its current status is in `from`.
	// completed_at is stamped when `to` is completed.
	TransitionStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (bool, error)
	Cancel(ctx context.Context, params model.CancelBookingParams, from []model.BookingStatus) (bool, error)
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.Booking, error)
	ListByProfessional(ctx context.Context, professionalID string, limit, offset int) ([]model.Booking, error)
	// FindUnreviewedCompleted returns completed session bookings of the professional
	// with no review of any status from the same client for the same session.
	// When since is set only bookings completed at or after it are returned.
	FindUnreviewedCompleted(ctx context.Context, professionalID string, since *time.Time) ([]model.Booking, error)
	CountCompletedSessionBookings(ctx context.Context, professionalID string) (int, error)
	FindCompletedForSession(ctx context.Context, clientID, sessionID string) (*model.Booking, error)
	FindCompletedWithProfessional(ctx context.Context, clientID, professionalID string) (*model.Booking, error)
	WithTx(tx *sqlx.Tx) BookingRepository
}

type bookingRepo struct {
	db database.DBTX
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &bookingRepo{db: db}
}

func (r *bookingRepo) WithTx(tx *sqlx.Tx) BookingRepository {
	return &bookingRepo{db: tx}
}

func (r *bookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT * FROM bookings WHERE id = $1`, id)
	return HandleNotFound(&booking, err)
}

func (r *bookingRepo) Create(ctx context.Context, params model.CreateBookingParams) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		INSERT INTO bookings
			(booking_number, client_id, professional_id, service_name, service_duration,
			 service_price, session_id, appointment_date, start_time, end_time, location, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, params.BookingNumber, params.ClientID, params.ProfessionalID, params.ServiceName,
		params.ServiceDuration, params.ServicePrice, params.SessionID, params.AppointmentDate,
		params.StartTime, params.EndTime, params.Location, params.Notes)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepo) FindBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE session_id = $1 AND status = ANY($2)
		ORDER BY created_at ASC
	`, sessionID, pq.Array(toStrings(statuses)))
	return bookings, err
}

func (r *bookingRepo) CountBySession(ctx context.Context, sessionID string, statuses []model.BookingStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE session_id = $1 AND status = ANY($2)
	`, sessionID, pq.Array(toStrings(statuses)))
	return count, err
}

func (r *bookingRepo) HasActiveForClient(ctx context.Context, sessionID, clientID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE session_id = $1 AND client_id = $2 AND status IN ('pending', 'confirmed')
		)
	`, sessionID, clientID)
	return exists, err
}

func (r *bookingRepo) TransitionStatus(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = $3::text,
			completed_at = CASE WHEN $3::text = 'completed' THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, id, pq.Array(toStrings(from)), string(to)))
}

func (r *bookingRepo) Cancel(ctx context.Context, params model.CancelBookingParams, from []model.BookingStatus) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `
		UPDATE bookings SET
			status = 'cancelled',
			cancelled_by = $3,
			cancellation_reason = $4,
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
	`, params.ID, pq.Array(toStrings(from)), params.CancelledBy, params.Reason))
}

func (r *bookingRepo) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]model.Booking, error) {
	l, o := pageBounds(limit, offset)
	var bookings []model.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, l, o)
	return bookings, err
}

func (r *bookingRepo) ListByProfessional(ctx context.Context, professionalID string, limit, offset int) ([]model.Booking, error) {
	l, o := pageBounds(limit, offset)
	var bookings []model.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings
		WHERE professional_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, professionalID, l, o)
	return bookings, err
}

func (r *bookingRepo) FindUnreviewedCompleted(ctx context.Context, professionalID string, since *time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT b.* FROM bookings b
		WHERE b.professional_id = $1
		AND b.status = 'completed'
		AND b.session_id IS NOT NULL
		AND ($2::timestamptz IS NULL OR b.completed_at >= $2::timestamptz)
		AND NOT EXISTS (
			SELECT 1 FROM reviews r
			WHERE r.client_id = b.client_id
			AND r.content_type = 'session'
			AND r.content_id = b.session_id::text
		)
		ORDER BY b.completed_at ASC
	`, professionalID, since)
	return bookings, err
}

func (r *bookingRepo) CountCompletedSessionBookings(ctx context.Context, professionalID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE professional_id = $1
		AND status = 'completed'
		AND session_id IS NOT NULL
	`, professionalID)
	return count, err
}

func (r *bookingRepo) FindCompletedForSession(ctx context.Context, clientID, sessionID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT * FROM bookings
		WHERE client_id = $1 AND session_id = $2 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1
	`, clientID, sessionID)
	return HandleNotFound(&booking, err)
}

func (r *bookingRepo) FindCompletedWithProfessional(ctx context.Context, clientID, professionalID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT * FROM bookings
		WHERE client_id = $1 AND professional_id = $2 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1
	`, clientID, professionalID)
	return HandleNotFound(&booking, err)
}
