package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/models"
)

type Config struct {
	ServerPort     string
	DatabaseURL    string
	JWTSecret      string
	ESURL          string
	ESUser         string
	ESPassword     string
	KafkaAddress   string
	RedisAddress   string
	SendgridAPIKey string
	MailFrom       string
	UploadDir      string
	LogLevel       string
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	cfg := &Config{
		ServerPort:     os.Getenv("SERVER_PORT"),
		DatabaseURL:    must(os.Getenv("DATABASE_URL"), "DATABASE_URL"),
		JWTSecret:      must(os.Getenv("JWT_HS256_SECRET"), "JWT_HS256_SECRET"),
		ESURL:          os.Getenv("ES_URL"),
		ESUser:         os.Getenv("ES_USER"),
		ESPassword:     os.Getenv("ES_PASSWORD"),
		KafkaAddress:   os.Getenv("KAFKA_ADDRESS"),
		RedisAddress:   os.Getenv("REDIS_ADDRESS"),
		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       os.Getenv("MAIL_FROM"),
		UploadDir:      os.Getenv("UPLOAD_DIR"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	return cfg
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Product{},
		&models.User{},
		&models.UserSession{},
		&models.Cart{},
		&models.CartItem{},
		&models.Coupon{},
		&models.Review{},
		&models.Favorite{},
		&models.Order{},
		&models.OrderItem{},
		&models.FileObject{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
