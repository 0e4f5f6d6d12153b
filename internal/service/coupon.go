package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

type CouponService struct {
	Repo *repo.GormRepo
}

func (s *CouponService) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if c.Code == "" || c.DiscountPercent <= 0 || c.DiscountPercent > 100 {
		return fmt.Errorf("code required, discount in (0,100]: %w", ErrValidation)
	}
	if c.ExpiresAt.Before(time.Now()) {
		return fmt.Errorf("expiry in the past: %w", ErrValidation)
	}
	if c.UsageLimit != nil && *c.UsageLimit <= 0 {
		return fmt.Errorf("usage limit must be positive: %w", ErrValidation)
	}
	if err := s.Repo.CreateCoupon(ctx, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("code taken: %w", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.Repo.ListCoupons(ctx)
}

func (s *CouponService) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	if _, err := s.getCoupon(ctx, c.ID); err != nil {
		return err
	}
	return s.Repo.UpdateCoupon(ctx, c)
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id uint) error {
	if _, err := s.getCoupon(ctx, id); err != nil {
		return err
	}
	return s.Repo.DeleteCoupon(ctx, id)
}

func (s *CouponService) getCoupon(ctx context.Context, id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.Repo.DB.WithContext(ctx).First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &coupon, nil
}
