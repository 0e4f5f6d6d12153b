package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) FindActiveCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.WithContext(ctx).
		Where("lower(code) = ? AND is_active", strings.ToLower(code)).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementCouponUsage bumps times_used while the usage limit still allows
// it; the guard and the increment happen in one statement.
func (r *GormRepo) IncrementCouponUsage(ctx context.Context, couponID uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR times_used < usage_limit)", couponID).
		Update("times_used", gorm.Expr("times_used + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponExhausted
	}
	return nil
}

func (r *GormRepo) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToLower(c.Code)
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *GormRepo) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.DB.WithContext(ctx).Order("id").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *GormRepo) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToLower(c.Code)
	return r.DB.WithContext(ctx).Save(c).Error
}

func (r *GormRepo) DeleteCoupon(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&models.Coupon{}, id).Error
}
