package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/wellspring/marketplace-server-go/internal/audit"
	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/util"
)

type CreateReviewInput struct {
	ContentType model.ContentType   `json:"contentType" validate:"required,oneof=product event session professional"`
	ContentID   string              `json:"contentId" validate:"required,max=64"`
	Rating      int                 `json:"rating" validate:"required,min=1,max=5"`
	Title       *string             `json:"title" validate:"omitempty,max=100"`
	Comment     *string             `json:"comment" validate:"omitempty,max=1000"`
	Aspects     model.ReviewAspects `json:"aspects"`
}

type UpdateReviewStatusInput struct {
	Status model.ReviewStatus `json:"status" validate:"required,oneof=pending approved rejected"`
}

type RespondToReviewInput struct {
	Response string `json:"response" validate:"required,max=1000"`
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   model.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

type ReviewService struct {
	reviews       repository.ReviewRepository
	bookings      repository.BookingRepository
	sessions      repository.SessionRepository
	professionals repository.ProfessionalRepository
	aggregator    *RatingAggregator
	notifier      Notifier
	autoApprove   bool
}

func NewReviewService(
	reviews repository.ReviewRepository,
	bookings repository.BookingRepository,
	sessions repository.SessionRepository,
	professionals repository.ProfessionalRepository,
	aggregator *RatingAggregator,
	notifier Notifier,
	autoApprove bool,
) *ReviewService {
	return &ReviewService{
		reviews:       reviews,
		bookings:      bookings,
		sessions:      sessions,
		professionals: professionals,
		aggregator:    aggregator,
		notifier:      notifier,
		autoApprove:   autoApprove,
	}
}

func duplicateReview() *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeAlreadyExists, "You have already reviewed this")
}

// CreateReview stores a client's review. Session and professional reviews
// require a completed booking. The unique index on (client, content) is the
// only guard against duplicates; the existence check just fails fast.
func (s *ReviewService) CreateReview(ctx context.Context, clientID string, input CreateReviewInput) (*model.Review, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	params := model.CreateReviewParams{
		ClientID:    clientID,
		ContentType: input.ContentType,
		ContentID:   input.ContentID,
		Rating:      input.Rating,
		Title:       input.Title,
		Comment:     input.Comment,
		Aspects:     input.Aspects,
		Status:      model.ReviewStatusPending,
	}
	if s.autoApprove {
		params.Status = model.ReviewStatusApproved
	}

	if err := s.resolveTarget(ctx, &params); err != nil {
		return nil, err
	}

	exists, err := s.reviews.ExistsForClientContent(ctx, clientID, input.ContentType, input.ContentID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, duplicateReview()
	}

	review, err := s.reviews.Create(ctx, params)
	if errors.Is(err, repository.ErrDuplicateReview) {
		return nil, duplicateReview()
	}
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	log.Info().
		Str("reviewId", review.ID).
		Str("clientId", clientID).
		Str("contentType", string(review.ContentType)).
		Str("contentId", review.ContentID).
		Int("rating", review.Rating).
		Msg("review created")

	if review.Status == model.ReviewStatusApproved {
		s.recompute(ctx, review)
	}
	return review, nil
}

var errMalformedContentID = apperrors.InvalidInput("contentId", "must be a UUID")

// resolveTarget fills the snapshot fields and checks the client may review
// the target.
func (s *ReviewService) resolveTarget(ctx context.Context, params *model.CreateReviewParams) error {
	switch params.ContentType {
	case model.ContentTypeSession:
		if !util.IsValidUUID(params.ContentID) {
			return errMalformedContentID
		}
		session, err := s.sessions.FindByID(ctx, params.ContentID)
		if err != nil {
			return fmt.Errorf("find session: %w", err)
		}
		if session == nil {
			return apperrors.NotFound("Session")
		}
		booking, err := s.bookings.FindCompletedForSession(ctx, params.ClientID, session.ID)
		if err != nil {
			return fmt.Errorf("find completed booking: %w", err)
		}
		if booking == nil {
			return apperrors.Forbidden("You can only review sessions you have attended")
		}
		params.ProfessionalID = &session.ProfessionalID
		params.ContentTitle = session.Title
		params.BookingID = &booking.ID
		params.IsVerified = true

	case model.ContentTypeProfessional:
		if !util.IsValidUUID(params.ContentID) {
			return errMalformedContentID
		}
		professional, err := s.professionals.FindByID(ctx, params.ContentID)
		if err != nil {
			return fmt.Errorf("find professional: %w", err)
		}
		if professional == nil {
			return apperrors.NotFound("Professional")
		}
		booking, err := s.bookings.FindCompletedWithProfessional(ctx, params.ClientID, professional.ID)
		if err != nil {
			return fmt.Errorf("find completed booking: %w", err)
		}
		if booking == nil {
			return apperrors.Forbidden("You can only review professionals you have booked")
		}
		params.ProfessionalID = &professional.ID
		params.ContentTitle = professional.DisplayName
		params.BookingID = &booking.ID
		params.IsVerified = true
	}
	return nil
}

func (s *ReviewService) GetReview(ctx context.Context, id string) (*model.Review, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find review: %w", err)
	}
	if review == nil {
		return nil, apperrors.NotFound("Review")
	}
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, filter model.ReviewFilter) ([]model.Review, error) {
	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}

// UpdateReviewStatus moderates a review and re-aggregates when the approved
// set changed.
func (s *ReviewService) UpdateReviewStatus(ctx context.Context, actor Actor, id string, input UpdateReviewStatusInput) (*model.Review, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.Forbidden("Only administrators can moderate reviews")
	}
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	review, err := s.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.reviews.UpdateStatus(ctx, id, input.Status)
	if err != nil {
		return nil, fmt.Errorf("update review status: %w", err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Review")
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventReviewStatusChange,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		ResourceID: id,
		Details: map[string]any{
			"from": string(review.Status),
			"to":   string(updated.Status),
		},
	})

	if review.Status == model.ReviewStatusApproved || updated.Status == model.ReviewStatusApproved {
		s.recompute(ctx, updated)
	}
	return updated, nil
}

// RespondToReview lets the reviewed professional attach a public reply.
func (s *ReviewService) RespondToReview(ctx context.Context, professionalUserID, id string, input RespondToReviewInput) (*model.Review, error) {
	if err := util.ValidateStruct(input); err != nil {
		return nil, err
	}

	review, err := s.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}

	professional, err := s.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}
	if review.ProfessionalID == nil || *review.ProfessionalID != professional.ID {
		return nil, apperrors.Forbidden("Only the reviewed professional can respond")
	}

	updated, err := s.reviews.SetResponse(ctx, id, input.Response)
	if err != nil {
		return nil, fmt.Errorf("set review response: %w", err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Review")
	}

	payload := map[string]any{
		"reviewId":         updated.ID,
		"contentType":      updated.ContentType,
		"contentId":        updated.ContentID,
		"professionalName": professional.DisplayName,
	}
	if err := s.notifier.Notify(ctx, model.NotificationReviewResponse, updated.ClientID, payload); err != nil {
		log.Warn().Err(err).Str("reviewId", id).Msg("failed to notify client of review response")
	}

	return updated, nil
}

// DeleteReview removes a review owned by the actor, or any review for admins.
func (s *ReviewService) DeleteReview(ctx context.Context, actor Actor, id string) error {
	review, err := s.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && review.ClientID != actor.UserID {
		return apperrors.Forbidden("You can only delete your own reviews")
	}

	deleted, err := s.reviews.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("Review")
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventReviewDelete,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		ResourceID: id,
	})

	if review.Status == model.ReviewStatusApproved {
		s.recompute(ctx, review)
	}
	return nil
}

// GetReviewStats summarizes how many completed session bookings of the
// professional have been reviewed.
func (s *ReviewService) GetReviewStats(ctx context.Context, professionalUserID string) (*model.ReviewStats, error) {
	professional, err := s.professionals.FindByUserID(ctx, professionalUserID)
	if err != nil {
		return nil, fmt.Errorf("find professional: %w", err)
	}
	if professional == nil {
		return nil, apperrors.NotFound("Professional profile")
	}

	completed, err := s.bookings.CountCompletedSessionBookings(ctx, professional.ID)
	if err != nil {
		return nil, fmt.Errorf("count completed bookings: %w", err)
	}
	received, err := s.reviews.CountByProfessional(ctx, professional.ID, model.ContentTypeSession)
	if err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	unreviewed, err := s.bookings.FindUnreviewedCompleted(ctx, professional.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("find unreviewed bookings: %w", err)
	}

	stats := &model.ReviewStats{
		CompletedSessions: completed,
		ReviewsReceived:   received,
		PendingReviews:    len(unreviewed),
	}
	if completed > 0 {
		stats.ReviewRate = math.Round(float64(received)/float64(completed)*1000) / 10
	}
	return stats, nil
}

// recompute refreshes the target's summary. The review write already
// succeeded, so a failure here is logged and left for the next mutation.
func (s *ReviewService) recompute(ctx context.Context, review *model.Review) {
	if _, err := s.aggregator.Recompute(ctx, review.ContentType, review.ContentID); err != nil {
		log.Error().
			Err(err).
			Str("contentType", string(review.ContentType)).
			Str("contentId", review.ContentID).
			Msg("failed to recompute rating")
	}
}
