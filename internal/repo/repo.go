package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCouponExhausted   = errors.New("coupon exhausted")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// Tx runs fn with a repo bound to a single transaction. Every multi-step
// cart mutation goes through here so that partial stock adjustments never
// become visible to other carts.
func (r *GormRepo) Tx(ctx context.Context, fn func(txr *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}
