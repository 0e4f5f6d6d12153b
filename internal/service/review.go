package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

type ReviewService struct {
	Repo *repo.GormRepo
}

// AddReview allows one review per user and product; a second attempt is a
// conflict, not an update.
func (s *ReviewService) AddReview(ctx context.Context, productID uint, rating int, comment string, actor Actor) (*models.Review, error) {
	l := logging.FromContext(ctx).With("svc", "review.add", "product_id", productID)

	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be 1..5: %w", ErrValidation)
	}
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	if _, err := s.Repo.GetReview(ctx, actor.UserID, productID); err == nil {
		return nil, fmt.Errorf("already reviewed: %w", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	review := &models.Review{
		ProductID: productID,
		UserID:    actor.UserID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.Repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}
	l.Info("review_added", "review_id", review.ID)
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, productID uint, from, limit int) ([]models.Review, int64, error) {
	return s.Repo.ListProductReviews(ctx, productID, from, limit)
}

func (s *ReviewService) UpdateReview(ctx context.Context, productID uint, rating int, comment string, actor Actor) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be 1..5: %w", ErrValidation)
	}
	review, err := s.Repo.GetReview(ctx, actor.UserID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review: %w", ErrNotFound)
		}
		return nil, err
	}
	review.Rating = rating
	review.Comment = comment
	if err := s.Repo.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, productID uint, actor Actor) error {
	review, err := s.Repo.GetReview(ctx, actor.UserID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("review: %w", ErrNotFound)
		}
		return err
	}
	return s.Repo.DeleteReview(ctx, review.ID)
}
