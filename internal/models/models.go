package models

import (
	"time"
)

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                 json:"price"`
	Stock       int     `gorm:"not null;check:stock>=0"  json:"stock"`
	IsActive    bool    `gorm:"not null;default:true"    json:"is_active"`
}

// CanBeOrdered reports whether quantity units are still unreserved.
func (p *Product) CanBeOrdered(quantity int) bool {
	return p.IsActive && p.Stock >= quantity
}

type Cart struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          *uint      `gorm:"index"                    json:"user_id,omitempty"`
	SessionID       *string    `gorm:"index"                    json:"session_id,omitempty"`
	AppliedCouponID *uint      `json:"applied_coupon_id,omitempty"`
	Items           []CartItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"              json:"id"`
	CartID    uint    `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID uint    `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  int     `gorm:"not null;check:quantity>0"             json:"quantity"`
	UnitPrice float64 `gorm:"not null"                              json:"unit_price"`
	Product   Product `gorm:"foreignKey:ProductID"                  json:"product"`
}

type Coupon struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code            string    `gorm:"uniqueIndex;not null"     json:"code"`
	DiscountPercent float64   `gorm:"not null"                 json:"discount_percent"`
	IsActive        bool      `gorm:"not null;default:true"    json:"is_active"`
	ExpiresAt       time.Time `gorm:"not null"                 json:"expires_at"`
	UsageLimit      *int      `json:"usage_limit,omitempty"`
	TimesUsed       int       `gorm:"not null;default:0"       json:"times_used"`
}

type User struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null"     json:"email"`
	Username            string     `gorm:"uniqueIndex;not null"     json:"username"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	PasswordHash        string     `gorm:"not null"                 json:"-"`
	Role                string     `gorm:"not null;default:user"    json:"role"`
	IsActive            bool       `gorm:"not null;default:true"    json:"is_active"`
	IsDeleted           bool       `gorm:"not null;default:false"   json:"-"`
	IsEmailConfirmed    bool       `gorm:"not null;default:false"   json:"is_email_confirmed"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// UserSession holds the sha256 hash of a refresh token, never the plaintext.
// Rows are revoked, not deleted.
type UserSession struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;not null"     json:"-"`
	ExpiresAt time.Time `gorm:"not null"                 json:"expires_at"`
	IsRevoked bool      `gorm:"not null;default:false"   json:"is_revoked"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"              json:"id"`
	ProductID uint      `gorm:"uniqueIndex:idx_user_review;not null"  json:"product_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_review;not null"  json:"user_id"`
	Rating    int       `gorm:"not null"                              json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Favorite struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"               json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_favorite;not null" json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_user_favorite;not null" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement"    json:"id"`
	UserID          uint        `gorm:"index;not null"              json:"user_id"`
	Total           float64     `gorm:"not null"                    json:"total"`
	DiscountPercent float64     `gorm:"not null;default:0"          json:"discount_percent"`
	Status          string      `gorm:"not null;default:new"        json:"status"`
	Items           []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"index;not null"           json:"order_id"`
	ProductID uint    `gorm:"not null"                 json:"product_id"`
	Quantity  int     `gorm:"not null"                 json:"quantity"`
	UnitPrice float64 `gorm:"not null"                 json:"unit_price"`
}

type FileObject struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `gorm:"not null"                 json:"size"`
	Path        string    `gorm:"not null"                 json:"-"`
	UploadedBy  uint      `gorm:"index"                    json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}
