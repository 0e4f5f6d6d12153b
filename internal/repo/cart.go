package repo

import (
	"context"

	"github.com/kmalykhin/storefront/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).
		Preload("Items").Preload("Items.Product").
		First(&cart, cartID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.DB.WithContext(ctx).Create(cart).Error
}

func (r *GormRepo) GetCartItem(ctx context.Context, cartID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, itemID uint, quantity int) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, itemID uint) error {
	return r.DB.WithContext(ctx).Delete(&models.CartItem{}, itemID).Error
}

func (r *GormRepo) DeleteCartItems(ctx context.Context, cartID uint) error {
	return r.DB.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

func (r *GormRepo) SetAppliedCoupon(ctx context.Context, cartID uint, couponID *uint) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("applied_coupon_id", couponID).Error
}
