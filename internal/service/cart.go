package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

// CartService owns the stock-reservation invariant: every quantity unit
// sitting in a cart item is mirrored by an equal reduction of the product's
// stock, and removing or shrinking an item restores it exactly. All
// mutations run in a single transaction per call.
type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, cartID uint, actor Actor) (*models.Cart, error) {
	cart, err := s.Repo.GetCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
		}
		return nil, err
	}
	if err := authorizeCart(cart, actor); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem reserves quantity units of the product into the cart. cartID 0
// means "create a new cart for the actor first".
func (s *CartService) AddItem(ctx context.Context, cartID, productID uint, quantity int, actor Actor) (*models.Cart, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add_item", "cart_id", cartID, "product_id", productID)

	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	if productID == 0 {
		return nil, fmt.Errorf("product_id required: %w", ErrValidation)
	}

	var resultID uint
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		var cart *models.Cart
		if cartID == 0 {
			userID := actor.UserID
			cart = &models.Cart{UserID: &userID}
			if err := tx.CreateCart(ctx, cart); err != nil {
				return err
			}
		} else {
			var err error
			cart, err = tx.GetCart(ctx, cartID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
				}
				return err
			}
			if err := authorizeCart(cart, actor); err != nil {
				return err
			}
		}
		resultID = cart.ID

		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return err
		}
		if !product.CanBeOrdered(quantity) {
			return fmt.Errorf("product %d, want %d of %d: %w", productID, quantity, product.Stock, ErrInsufficientStock)
		}

		// The database-side guard is authoritative: the CanBeOrdered check
		// above can go stale under concurrent adds.
		if err := tx.ReserveStock(ctx, productID, quantity); err != nil {
			if errors.Is(err, repo.ErrInsufficientStock) {
				return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
			}
			return err
		}

		item, err := tx.GetCartItem(ctx, cart.ID, productID)
		switch {
		case err == nil:
			return tx.SetCartItemQuantity(ctx, item.ID, item.Quantity+quantity)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.CreateCartItem(ctx, &models.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: product.Price,
			})
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	l.Info("item_added", "cart_id", resultID, "quantity", quantity)
	return s.Repo.GetCart(ctx, resultID)
}

// UpdateItemQuantity releases the old reservation, re-checks availability
// for the new quantity and re-reserves. When the new quantity does not fit,
// the transaction rolls back and state is exactly as before the call.
// newQuantity <= 0 deletes the item.
func (s *CartService) UpdateItemQuantity(ctx context.Context, cartID, productID uint, newQuantity int, actor Actor) (*models.Cart, error) {
	l := logging.FromContext(ctx).With("svc", "cart.update_item", "cart_id", cartID, "product_id", productID)

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
			}
			return err
		}
		if err := authorizeCart(cart, actor); err != nil {
			return err
		}

		item, err := tx.GetCartItem(ctx, cartID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart item: %w", ErrNotFound)
			}
			return err
		}

		if err := tx.ReleaseStock(ctx, productID, item.Quantity); err != nil {
			return err
		}

		if newQuantity <= 0 {
			return tx.DeleteCartItem(ctx, item.ID)
		}

		if err := tx.ReserveStock(ctx, productID, newQuantity); err != nil {
			if errors.Is(err, repo.ErrInsufficientStock) {
				return fmt.Errorf("product %d: %w", productID, ErrInsufficientStock)
			}
			return err
		}
		return tx.SetCartItemQuantity(ctx, item.ID, newQuantity)
	})
	if err != nil {
		return nil, err
	}

	l.Info("item_updated", "new_quantity", newQuantity)
	return s.Repo.GetCart(ctx, cartID)
}

// RemoveItem restores the item's quantity to stock and deletes the item.
// A missing item is a logged no-op.
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID uint, actor Actor) (*models.Cart, error) {
	l := logging.FromContext(ctx).With("svc", "cart.remove_item", "cart_id", cartID, "product_id", productID)

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
			}
			return err
		}
		if err := authorizeCart(cart, actor); err != nil {
			return err
		}

		item, err := tx.GetCartItem(ctx, cartID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("remove_item_missing")
				return nil
			}
			return err
		}

		if err := tx.ReleaseStock(ctx, productID, item.Quantity); err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
	if err != nil {
		return nil, err
	}

	l.Info("item_removed")
	return s.Repo.GetCart(ctx, cartID)
}

// ClearCart restores stock for every item and deletes them all; the cart
// row itself stays.
func (s *CartService) ClearCart(ctx context.Context, cartID uint, actor Actor) error {
	l := logging.FromContext(ctx).With("svc", "cart.clear", "cart_id", cartID)

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
			}
			return err
		}
		if err := authorizeCart(cart, actor); err != nil {
			return err
		}

		for _, item := range cart.Items {
			if err := tx.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteCartItems(ctx, cartID)
	})
	if err != nil {
		return err
	}

	l.Info("cart_cleared")
	return nil
}

// ApplyCoupon matches an eligible coupon code case-insensitively, sets it on
// the cart and bumps times_used once. Missing or inactive codes report
// NotFound; expired or exhausted ones report a distinct coupon error.
func (s *CartService) ApplyCoupon(ctx context.Context, cartID uint, code string, actor Actor) (*models.Cart, error) {
	l := logging.FromContext(ctx).With("svc", "cart.apply_coupon", "cart_id", cartID)

	if code == "" {
		return nil, fmt.Errorf("code required: %w", ErrValidation)
	}

	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
			}
			return err
		}
		if err := authorizeCart(cart, actor); err != nil {
			return err
		}

		coupon, err := tx.FindActiveCoupon(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("coupon %q: %w", code, ErrNotFound)
			}
			return err
		}
		if time.Now().After(coupon.ExpiresAt) {
			return fmt.Errorf("coupon %q expired: %w", code, ErrCouponInvalid)
		}

		if err := tx.IncrementCouponUsage(ctx, coupon.ID); err != nil {
			if errors.Is(err, repo.ErrCouponExhausted) {
				return fmt.Errorf("coupon %q: %w", code, ErrCouponInvalid)
			}
			return err
		}
		return tx.SetAppliedCoupon(ctx, cartID, &coupon.ID)
	})
	if err != nil {
		return nil, err
	}

	l.Info("coupon_applied", "code", code)
	return s.Repo.GetCart(ctx, cartID)
}

// Checkout converts the cart into an order in one transaction: reserved
// units become sold units, so stock is not released. The applied coupon's
// discount is baked into the total and the cart is emptied.
func (s *CartService) Checkout(ctx context.Context, cartID uint, actor Actor) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "cart.checkout", "cart_id", cartID)

	var order *models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		cart, err := tx.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart %d: %w", cartID, ErrNotFound)
			}
			return err
		}
		if err := authorizeCart(cart, actor); err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("cart is empty: %w", ErrValidation)
		}

		var subtotal float64
		orderItems := make([]models.OrderItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			subtotal += float64(item.Quantity) * item.UnitPrice
			orderItems = append(orderItems, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		var discount float64
		if cart.AppliedCouponID != nil {
			var coupon models.Coupon
			if err := tx.DB.WithContext(ctx).First(&coupon, *cart.AppliedCouponID).Error; err != nil {
				return err
			}
			discount = coupon.DiscountPercent
		}
		total := subtotal * (1 - discount/100)

		order = &models.Order{
			UserID:          actor.UserID,
			Total:           total,
			DiscountPercent: discount,
			Status:          "new",
			Items:           orderItems,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.DeleteCartItems(ctx, cartID); err != nil {
			return err
		}
		return tx.SetAppliedCoupon(ctx, cartID, nil)
	})
	if err != nil {
		return nil, err
	}

	l.Info("checkout_complete", "order_id", order.ID, "total", order.Total)
	return order, nil
}

func authorizeCart(cart *models.Cart, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if cart.UserID != nil && *cart.UserID != actor.UserID {
		return fmt.Errorf("cart %d belongs to another user: %w", cart.ID, ErrForbidden)
	}
	return nil
}
