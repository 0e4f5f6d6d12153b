package repo

import (
	"context"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) CreateReview(ctx context.Context, review *models.Review) error {
	return r.DB.WithContext(ctx).Create(review).Error
}

func (r *GormRepo) GetReview(ctx context.Context, userID, productID uint) (*models.Review, error) {
	var review models.Review
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *GormRepo) ListProductReviews(ctx context.Context, productID uint, from, limit int) ([]models.Review, int64, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reviews []models.Review
	if err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").Offset(from).Limit(limit).
		Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *GormRepo) UpdateReview(ctx context.Context, review *models.Review) error {
	return r.DB.WithContext(ctx).Save(review).Error
}

func (r *GormRepo) DeleteReview(ctx context.Context, reviewID uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Review{}, reviewID).Error
}
