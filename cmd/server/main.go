package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kmalykhin/storefront/internal/audit"
	"github.com/kmalykhin/storefront/internal/config"
	"github.com/kmalykhin/storefront/internal/es"
	"github.com/kmalykhin/storefront/internal/httpserver"
	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/mail"
	"github.com/kmalykhin/storefront/internal/metrics"
	"github.com/kmalykhin/storefront/internal/repo"
	"github.com/kmalykhin/storefront/internal/service"
	"github.com/kmalykhin/storefront/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	var auditSink audit.Sink = audit.Nop{}
	var kafkaSink *audit.KafkaSink
	if cfg.KafkaAddress != "" {
		kafkaSink = audit.NewKafkaSink(cfg.KafkaAddress)
		auditSink = kafkaSink
	}

	var mailSender mail.Sender = mail.Nop{}
	if cfg.SendgridAPIKey != "" {
		mailSender = mail.NewSendgridSender(cfg.SendgridAPIKey, cfg.MailFrom)
	}

	r := repo.New(db)

	authSvc := &service.AuthService{
		Repo:      r,
		JWTSecret: []byte(cfg.JWTSecret),
		Audit:     auditSink,
		Mail:      mailSender,
	}
	cartSvc := &service.CartService{Repo: r}
	productSvc := &service.ProductService{Repo: r}
	if cfg.ESURL != "" {
		client, err := es.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("es init: %v", err)
		}
		productSvc.ES = client
	}
	couponSvc := &service.CouponService{Repo: r}
	reviewSvc := &service.ReviewService{Repo: r}
	favoriteSvc := &service.FavoriteService{Repo: r}
	orderSvc := &service.OrderService{Repo: r}

	blobs, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}
	var sessions storage.UploadSessionStore
	if cfg.RedisAddress != "" {
		sessions = storage.NewRedisSessionStore(cfg.RedisAddress)
	} else {
		log.Fatal("REDIS_ADDRESS required for upload sessions")
	}
	uploadSvc := &service.UploadService{Repo: r, Sessions: sessions, Blobs: blobs}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(logging.Middleware(logger))
	e.Use(metrics.Middleware())

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:     &httpserver.AuthHTTP{Svc: authSvc, JWTSecret: []byte(cfg.JWTSecret)},
		CartHandler:     &httpserver.CartHTTP{Svc: cartSvc},
		ProductHandler:  &httpserver.ProductHTTP{Svc: productSvc},
		CouponHandler:   &httpserver.CouponHTTP{Svc: couponSvc},
		ReviewHandler:   &httpserver.ReviewHTTP{Svc: reviewSvc},
		FavoriteHandler: &httpserver.FavoriteHTTP{Svc: favoriteSvc},
		OrderHandler:    &httpserver.OrderHTTP{Svc: orderSvc},
		UploadHandler:   &httpserver.UploadHTTP{Svc: uploadSvc},
		JWTSecret:       []byte(cfg.JWTSecret),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("starting server on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
