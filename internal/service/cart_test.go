package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
)

func seedProduct(t *testing.T, r *repo.GormRepo, name string, price float64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Stock: stock, IsActive: true}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func seedCoupon(t *testing.T, r *repo.GormRepo, code string, percent float64, limit *int, expiresAt time.Time) *models.Coupon {
	t.Helper()
	c := &models.Coupon{Code: code, DiscountPercent: percent, IsActive: true, ExpiresAt: expiresAt, UsageLimit: limit}
	require.NoError(t, r.CreateCoupon(context.Background(), c))
	return c
}

func cartQuantitySum(cart *models.Cart) int {
	var sum int
	for _, item := range cart.Items {
		sum += item.Quantity
	}
	return sum
}

func TestAddItemCreatesCartAndReservesStock(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "keyboard", 49.90, 10)

	cart, err := svc.AddItem(ctx, 0, p.ID, 3, actor)
	require.NoError(t, err)
	require.NotZero(t, cart.ID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 49.90, cart.Items[0].UnitPrice)
	require.NotNil(t, cart.UserID)
	assert.Equal(t, uint(1), *cart.UserID)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "mouse", 19.00, 10)

	cart, err := svc.AddItem(ctx, 0, p.ID, 2, actor)
	require.NoError(t, err)
	cart, err = svc.AddItem(ctx, cart.ID, p.ID, 4, actor)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 6, cart.Items[0].Quantity)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
}

func TestAddItemInsufficientStockHasNoSideEffects(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "monitor", 250.00, 2)

	cart, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, cart.ID, p.ID, 5, actor)
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, cartQuantitySum(cart))
}

func TestAddItemInactiveProductRejected(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := &models.Product{Name: "retired", Price: 5, Stock: 100, IsActive: false}
	require.NoError(t, r.CreateProduct(ctx, p))

	_, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddItemValidation(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	_, err := svc.AddItem(ctx, 0, 1, 0, actor)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, 0, 0, 1, actor)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, 0, 999, 1, actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItemQuantityConservesStock(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "cable", 3.50, 10)

	cart, err := svc.AddItem(ctx, 0, p.ID, 4, actor)
	require.NoError(t, err)

	// grow
	cart, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 7, actor)
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	// shrink
	cart, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 2, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	got, err = r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)
}

func TestUpdateItemQuantityToZeroDeletesLine(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "stand", 15.00, 5)

	cart, err := svc.AddItem(ctx, 0, p.ID, 3, actor)
	require.NoError(t, err)

	cart, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 0, actor)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestUpdateItemQuantityRollsBackWhenStockShort(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "gpu", 900.00, 3)

	cart, err := svc.AddItem(ctx, 0, p.ID, 3, actor)
	require.NoError(t, err)

	// The transient release inside the transaction must not leak when the
	// bigger reservation fails.
	_, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 50, actor)
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestRemoveItemRestoresStock(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "hub", 29.00, 6)

	cart, err := svc.AddItem(ctx, 0, p.ID, 4, actor)
	require.NoError(t, err)

	cart, err = svc.RemoveItem(ctx, cart.ID, p.ID, actor)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)

	// removing again is a no-op
	_, err = svc.RemoveItem(ctx, cart.ID, p.ID, actor)
	require.NoError(t, err)
	got, err = r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock)
}

func TestClearCartRestoresEveryItem(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p1 := seedProduct(t, r, "a", 1.00, 10)
	p2 := seedProduct(t, r, "b", 2.00, 8)

	cart, err := svc.AddItem(ctx, 0, p1.ID, 4, actor)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, p2.ID, 5, actor)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(ctx, cart.ID, actor))

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	got1, err := r.GetProduct(ctx, p1.ID)
	require.NoError(t, err)
	got2, err2 := r.GetProduct(ctx, p2.ID)
	require.NoError(t, err2)
	assert.Equal(t, 10, got1.Stock)
	assert.Equal(t, 8, got2.Stock)
}

func TestCartBelongsToOtherUser(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()

	p := seedProduct(t, r, "c", 1.00, 10)

	cart, err := svc.AddItem(ctx, 0, p.ID, 1, Actor{UserID: 1, Role: "user"})
	require.NoError(t, err)

	_, err = svc.GetCart(ctx, cart.ID, Actor{UserID: 2, Role: "user"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AddItem(ctx, cart.ID, p.ID, 1, Actor{UserID: 2, Role: "user"})
	require.ErrorIs(t, err, ErrForbidden)

	// admin may inspect any cart
	_, err = svc.GetCart(ctx, cart.ID, Actor{UserID: 99, Role: "admin"})
	require.NoError(t, err)
}

func TestApplyCouponBumpsUsageOnce(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "d", 10.00, 10)
	coupon := seedCoupon(t, r, "SAVE10", 10, nil, time.Now().Add(time.Hour))

	cart, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)

	cart, err = svc.ApplyCoupon(ctx, cart.ID, "save10", actor)
	require.NoError(t, err)
	require.NotNil(t, cart.AppliedCouponID)
	assert.Equal(t, coupon.ID, *cart.AppliedCouponID)

	stored, err := r.FindActiveCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesUsed)
}

func TestApplyCouponRejectsExpiredWithoutUsage(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "e", 10.00, 10)
	seedCoupon(t, r, "OLD", 25, nil, time.Now().Add(-time.Minute))

	cart, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, cart.ID, "OLD", actor)
	require.ErrorIs(t, err, ErrCouponInvalid)

	stored, err := r.FindActiveCoupon(ctx, "OLD")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TimesUsed)

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.Nil(t, cart.AppliedCouponID)
}

func TestApplyCouponExhaustion(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "f", 10.00, 10)
	limit := 1
	seedCoupon(t, r, "ONCE", 15, &limit, time.Now().Add(time.Hour))

	cart1, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, cart1.ID, "ONCE", actor)
	require.NoError(t, err)

	cart2, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, cart2.ID, "ONCE", actor)
	require.ErrorIs(t, err, ErrCouponInvalid)

	stored, err := r.FindActiveCoupon(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesUsed)
}

func TestApplyCouponUnknownOrInactive(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "g", 10.00, 10)
	inactive := &models.Coupon{Code: "dark", DiscountPercent: 50, IsActive: false, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, r.CreateCoupon(ctx, inactive))

	cart, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(ctx, cart.ID, "nope", actor)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ApplyCoupon(ctx, cart.ID, "dark", actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutAppliesDiscountAndEmptiesCart(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 7, Role: "user"}

	p1 := seedProduct(t, r, "h", 20.00, 10)
	p2 := seedProduct(t, r, "i", 5.00, 10)
	seedCoupon(t, r, "HALF", 50, nil, time.Now().Add(time.Hour))

	cart, err := svc.AddItem(ctx, 0, p1.ID, 2, actor) // 40.00
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, p2.ID, 4, actor) // 20.00
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(ctx, cart.ID, "HALF", actor)
	require.NoError(t, err)

	order, err := svc.Checkout(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.InDelta(t, 30.00, order.Total, 1e-9)
	assert.Equal(t, 50.0, order.DiscountPercent)
	assert.Equal(t, "new", order.Status)
	assert.Equal(t, uint(7), order.UserID)
	require.Len(t, order.Items, 2)

	// reserved units are sold, not released
	got1, err := r.GetProduct(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got1.Stock)

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.AppliedCouponID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "j", 10.00, 10)
	cart, err := svc.AddItem(ctx, 0, p.ID, 1, actor)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, cart.ID, actor))

	_, err = svc.Checkout(ctx, cart.ID, actor)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCheckoutUsesPriceSnapshot(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	p := seedProduct(t, r, "k", 10.00, 10)
	cart, err := svc.AddItem(ctx, 0, p.ID, 2, actor)
	require.NoError(t, err)

	// price change after the item was added must not affect the total
	p.Price = 99.00
	require.NoError(t, r.UpdateProduct(ctx, p))

	order, err := svc.Checkout(ctx, cart.ID, actor)
	require.NoError(t, err)
	assert.InDelta(t, 20.00, order.Total, 1e-9)
}

func TestStockConservationAcrossMixedOperations(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r}
	ctx := context.Background()
	actor := Actor{UserID: 1, Role: "user"}

	const initial = 12
	p := seedProduct(t, r, "l", 4.00, initial)

	cart, err := svc.AddItem(ctx, 0, p.ID, 5, actor)
	require.NoError(t, err)
	_, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 9, actor)
	require.NoError(t, err)
	_, err = svc.UpdateItemQuantity(ctx, cart.ID, p.ID, 2, actor)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, cart.ID, p.ID, 3, actor)
	require.NoError(t, err)

	cart, err = svc.GetCart(ctx, cart.ID, actor)
	require.NoError(t, err)
	got, err := r.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, initial, got.Stock+cartQuantitySum(cart))
}
