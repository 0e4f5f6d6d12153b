package repo

import (
	"context"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) CreateFavorite(ctx context.Context, f *models.Favorite) error {
	return r.DB.WithContext(ctx).Create(f).Error
}

func (r *GormRepo) FavoriteExists(ctx context.Context, userID, productID uint) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	var favorites []models.Favorite
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).Order("created_at DESC").
		Find(&favorites).Error; err != nil {
		return nil, err
	}
	return favorites, nil
}

func (r *GormRepo) DeleteFavorite(ctx context.Context, userID, productID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.Favorite{})
	return res.RowsAffected, res.Error
}
