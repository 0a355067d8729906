package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
)

// RatingAggregator keeps stored rating summaries in line with approved reviews.
type RatingAggregator struct {
	reviews       repository.ReviewRepository
	sessions      repository.SessionRepository
	professionals repository.ProfessionalRepository
}

func NewRatingAggregator(
	reviews repository.ReviewRepository,
	sessions repository.SessionRepository,
	professionals repository.ProfessionalRepository,
) *RatingAggregator {
	return &RatingAggregator{
		reviews:       reviews,
		sessions:      sessions,
		professionals: professionals,
	}
}

// Recompute derives the summary from approved reviews and writes it to the
// summary table and, for sessions and professionals, onto the target row.
// The stored average keeps full precision.
func (a *RatingAggregator) Recompute(ctx context.Context, contentType model.ContentType, contentID string) (model.RatingSummary, error) {
	summary, err := a.reviews.Summarize(ctx, contentType, contentID)
	if err != nil {
		return model.RatingSummary{}, fmt.Errorf("summarize reviews: %w", err)
	}

	if err := a.reviews.UpsertSummary(ctx, contentType, contentID, summary); err != nil {
		return model.RatingSummary{}, fmt.Errorf("store rating summary: %w", err)
	}

	switch contentType {
	case model.ContentTypeSession:
		err = a.sessions.UpdateRating(ctx, contentID, summary)
	case model.ContentTypeProfessional:
		err = a.professionals.UpdateRating(ctx, contentID, summary)
	}
	if err != nil {
		return model.RatingSummary{}, fmt.Errorf("update %s rating: %w", contentType, err)
	}

	log.Debug().
		Str("contentType", string(contentType)).
		Str("contentId", contentID).
		Float64("averageRating", summary.AverageRating).
		Int("reviewCount", summary.ReviewCount).
		Msg("rating recomputed")

	return summary, nil
}
