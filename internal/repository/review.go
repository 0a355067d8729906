package repository

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

const reviewUniqueConstraint = "reviews_client_content_key"

// ErrDuplicateReview is returned when the client already reviewed the content.
var ErrDuplicateReview = errors.New("review already exists for this content")

type ReviewRepository interface {
	Create(ctx context.Context, params model.CreateReviewParams) (*model.Review, error)
	FindByID(ctx context.Context, id string) (*model.Review, error)
	ExistsForClientContent(ctx context.Context, clientID string, contentType model.ContentType, contentID string) (bool, error)
	List(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error)
	UpdateStatus(ctx context.Context, id string, status model.ReviewStatus) (*model.Review, error)
	SetResponse(ctx context.Context, id string, text string) (*model.Review, error)
	Delete(ctx context.Context, id string) (bool, error)
	// Summarize aggregates approved reviews only. No reviews yields a zero summary.
	Summarize(ctx context.Context, contentType model.ContentType, contentID string) (model.RatingSummary, error)
	UpsertSummary(ctx context.Context, contentType model.ContentType, contentID string, summary model.RatingSummary) error
	CountByProfessional(ctx context.Context, professionalID string, contentType model.ContentType) (int, error)
	WithTx(tx *sqlx.Tx) ReviewRepository
}

type reviewRepo struct {
	db database.DBTX
}

func NewReviewRepository(db *sqlx.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) WithTx(tx *sqlx.Tx) ReviewRepository {
	return &reviewRepo{db: tx}
}

func (r *reviewRepo) Create(ctx context.Context, params model.CreateReviewParams) (*model.Review, error) {
	var review model.Review
	err := r.db.GetContext(ctx, &review, `
		INSERT INTO reviews
			(client_id, professional_id, content_type, content_id, content_title, booking_id,
			 rating, title, comment, aspects, status, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`, params.ClientID, params.ProfessionalID, params.ContentType, params.ContentID, params.ContentTitle,
		params.BookingID, params.Rating, params.Title, params.Comment, params.Aspects, params.Status,
		params.IsVerified)
	if database.IsUniqueViolation(err, reviewUniqueConstraint) {
		return nil, ErrDuplicateReview
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	var review model.Review
	err := r.db.GetContext(ctx, &review, `SELECT * FROM reviews WHERE id = $1`, id)
	return HandleNotFound(&review, err)
}

func (r *reviewRepo) ExistsForClientContent(ctx context.Context, clientID string, contentType model.ContentType, contentID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE client_id = $1 AND content_type = $2 AND content_id = $3
		)
	`, clientID, contentType, contentID)
	return exists, err
}

func (r *reviewRepo) List(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error) {
	ds := dialect.From("reviews")

	conds := goqu.Ex{}
	if filter.ContentType != "" {
		conds["content_type"] = string(filter.ContentType)
	}
	if filter.ContentID != "" {
		conds["content_id"] = filter.ContentID
	}
	if filter.ProfessionalID != "" {
		conds["professional_id"] = filter.ProfessionalID
	}
	if filter.ClientID != "" {
		conds["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		conds["status"] = string(filter.Status)
	}
	if len(conds) > 0 {
		ds = ds.Where(conds)
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(limit).
		Offset(offset).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var reviews []model.Review
	err = r.db.SelectContext(ctx, &reviews, query, args...)
	return reviews, err
}

func (r *reviewRepo) UpdateStatus(ctx context.Context, id string, status model.ReviewStatus) (*model.Review, error) {
	var review model.Review
	err := r.db.GetContext(ctx, &review, `
		UPDATE reviews SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, status)
	return HandleNotFound(&review, err)
}

func (r *reviewRepo) SetResponse(ctx context.Context, id string, text string) (*model.Review, error) {
	var review model.Review
	err := r.db.GetContext(ctx, &review, `
		UPDATE reviews SET
			response_text = $2,
			responded_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, text)
	return HandleNotFound(&review, err)
}

func (r *reviewRepo) Delete(ctx context.Context, id string) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id))
}

func (r *reviewRepo) Summarize(ctx context.Context, contentType model.ContentType, contentID string) (model.RatingSummary, error) {
	var summary model.RatingSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT
			COALESCE(AVG(rating), 0)::float8 AS average_rating,
			COUNT(*) AS review_count
		FROM reviews
		WHERE content_type = $1 AND content_id = $2 AND status = 'approved'
	`, contentType, contentID)
	return summary, err
}

func (r *reviewRepo) UpsertSummary(ctx context.Context, contentType model.ContentType, contentID string, summary model.RatingSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rating_summaries (content_type, content_id, average_rating, review_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (content_type, content_id) DO UPDATE SET
			average_rating = EXCLUDED.average_rating,
			review_count = EXCLUDED.review_count,
			updated_at = NOW()
	`, contentType, contentID, summary.AverageRating, summary.ReviewCount)
	return err
}

func (r *reviewRepo) CountByProfessional(ctx context.Context, professionalID string, contentType model.ContentType) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM reviews
		WHERE professional_id = $1 AND content_type = $2
	`, professionalID, contentType)
	return count, err
}
