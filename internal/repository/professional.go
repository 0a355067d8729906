package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wellspring/marketplace-server-go/internal/database"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

type ProfessionalRepository interface {
	FindByID(ctx context.Context, id string) (*model.Professional, error)
	FindByUserID(ctx context.Context, userID string) (*model.Professional, error)
	UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error
	WithTx(tx *sqlx.Tx) ProfessionalRepository
}

type professionalRepo struct {
	db database.DBTX
}

func NewProfessionalRepository(db *sqlx.DB) ProfessionalRepository {
	return &professionalRepo{db: db}
}

func (r *professionalRepo) WithTx(tx *sqlx.Tx) ProfessionalRepository {
	return &professionalRepo{db: tx}
}

func (r *professionalRepo) FindByID(ctx context.Context, id string) (*model.Professional, error) {
	var p model.Professional
	err := r.db.GetContext(ctx, &p, `SELECT * FROM professionals WHERE id = $1`, id)
	return HandleNotFound(&p, err)
}

func (r *professionalRepo) FindByUserID(ctx context.Context, userID string) (*model.Professional, error) {
	var p model.Professional
	err := r.db.GetContext(ctx, &p, `SELECT * FROM professionals WHERE user_id = $1`, userID)
	return HandleNotFound(&p, err)
}

func (r *professionalRepo) UpdateRating(ctx context.Context, id string, summary model.RatingSummary) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE professionals SET
			average_rating = $2,
			review_count = $3,
			updated_at = NOW()
		WHERE id = $1
	`, id, summary.AverageRating, summary.ReviewCount)
	return err
}
