package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/config"
	"github.com/sportshop/api/internal/handler"
	"github.com/sportshop/api/internal/mail"
	"github.com/sportshop/api/internal/middleware"
	"github.com/sportshop/api/internal/repository"
	"github.com/sportshop/api/internal/service"
	"github.com/sportshop/api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Object storage
	s3Client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
	})
	if err != nil {
		log.Error("connect to object storage", "error", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	promoRepo := repository.NewPromotionRepository(dbPool)
	reviewRepo := repository.NewReviewRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshExpiration, amqpCh, log)
	userSvc := service.NewUserService(userRepo)
	categorySvc := service.NewCategoryService(categoryRepo, redisClient, log)
	productSvc := service.NewProductService(productRepo, categoryRepo, redisClient, log)
	promoSvc := service.NewPromotionService(promoRepo)
	cartSvc := service.NewCartService(cartRepo, productRepo, promoSvc, log)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, productRepo, userRepo, promoSvc, amqpCh, log)
	reviewSvc := service.NewReviewService(reviewRepo, orderRepo, productRepo, redisClient, log)
	wishlistSvc := service.NewWishlistService(userRepo, productRepo, cartSvc)
	uploadSvc := service.NewUploadService(s3Client, cfg.S3)
	analyticsSvc := service.NewAnalyticsService(orderRepo, productRepo, redisClient, log)

	if err := uploadSvc.EnsureBucket(ctx); err != nil {
		log.Error("prepare upload bucket", "error", err)
		os.Exit(1)
	}

	// Handlers
	authH := handler.NewAuthHandler(authSvc, cartSvc)
	userH := handler.NewUserHandler(userSvc)
	categoryH := handler.NewCategoryHandler(categorySvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	promoH := handler.NewPromotionHandler(promoSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)
	wishlistH := handler.NewWishlistHandler(wishlistSvc)
	uploadH := handler.NewUploadHandler(uploadSvc)
	analyticsH := handler.NewAnalyticsHandler(analyticsSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Workers
	mailWorker := worker.NewMailWorker(amqpCh, mail.NewSMTPSender(cfg.Mail), redisClient, log)
	analyticsWorker := worker.NewAnalyticsWorker(amqpCh, orderRepo, analyticsSvc, redisClient, log)
	cartReaper := worker.NewCartReaper(cartSvc, cfg.Shop.CartSweepPeriod, log)

	// Router
	auth := middleware.AuthMiddleware(cfg.JWT.Secret)
	optAuth := middleware.OptionalAuth(cfg.JWT.Secret)
	staff := middleware.StaffOnly()
	adminOnly := middleware.AdminOnly()
	session := middleware.Session(cfg.Shop.SessionCookie, cfg.Shop.SessionCookieTTL)

	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth", session)
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/refresh", authH.Refresh)
		authGroup.POST("/logout", authH.Logout)
		authGroup.GET("/me", auth, authH.Me)

		categories := v1.Group("/categories")
		categories.GET("", categoryH.List)
		categories.GET("/:slug", categoryH.GetBySlug)

		categoryAdmin := v1.Group("/admin/categories", auth, staff)
		categoryAdmin.POST("", categoryH.Create)
		categoryAdmin.PUT("/:id", categoryH.Update)
		categoryAdmin.DELETE("/:id", categoryH.Delete)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)
		products.GET("/:id/related", productH.Related)
		products.GET("/:id/reviews", reviewH.ListForProduct)
		products.GET("/slug/:slug", productH.GetBySlug)
		products.POST("/:id/reviews", auth, reviewH.Create)

		productAdmin := v1.Group("/admin/products", auth, staff)
		productAdmin.GET("", productH.AdminList)
		productAdmin.POST("", productH.Create)
		productAdmin.PUT("/:id", productH.Update)
		productAdmin.DELETE("/:id", productH.Delete)
		productAdmin.POST("/bulk/delete", productH.BulkDelete)
		productAdmin.POST("/bulk/status", productH.BulkUpdateStatus)
		productAdmin.PUT("/:id/variants/:variantId/stock", productH.UpdateVariantStock)

		cart := v1.Group("/cart", session, optAuth)
		cart.GET("", cartH.GetCart)
		cart.DELETE("", cartH.Clear)
		cart.POST("/items", cartH.AddItem)
		cart.PUT("/items/:id", cartH.UpdateItem)
		cart.DELETE("/items/:id", cartH.DeleteItem)
		cart.POST("/promo", cartH.ApplyPromo)
		cart.DELETE("/promo", cartH.RemovePromo)

		orders := v1.Group("/orders", auth)
		orders.POST("", orderH.Create)
		orders.GET("", orderH.ListMine)
		orders.GET("/:id", orderH.Get)
		orders.GET("/number/:number", orderH.GetByNumber)
		orders.POST("/:id/cancel", orderH.Cancel)

		orderAdmin := v1.Group("/admin/orders", auth, staff)
		orderAdmin.GET("", orderH.ListAll)
		orderAdmin.GET("/stats", orderH.Stats)
		orderAdmin.PUT("/:id/status", orderH.UpdateStatus)
		orderAdmin.PUT("/:id/payment", orderH.UpdatePaymentStatus)

		promos := v1.Group("/promotions")
		promos.POST("/validate", optAuth, promoH.Validate)

		promoAdmin := v1.Group("/admin/promotions", auth, adminOnly)
		promoAdmin.GET("", promoH.List)
		promoAdmin.GET("/:id", promoH.Get)
		promoAdmin.POST("", promoH.Create)
		promoAdmin.PUT("/:id", promoH.Update)
		promoAdmin.DELETE("/:id", promoH.Delete)

		reviews := v1.Group("/reviews", auth)
		reviews.GET("/mine", reviewH.ListMine)
		reviews.PUT("/:id", reviewH.Update)
		reviews.DELETE("/:id", reviewH.Delete)

		reviewAdmin := v1.Group("/admin/reviews", auth, staff)
		reviewAdmin.GET("", reviewH.ListModeration)
		reviewAdmin.POST("/:id/approve", reviewH.Approve)
		reviewAdmin.POST("/:id/reject", reviewH.Reject)
		reviewAdmin.POST("/:id/reply", reviewH.Reply)

		profile := v1.Group("/profile", auth)
		profile.GET("/addresses", userH.ListAddresses)
		profile.POST("/addresses", userH.AddAddress)
		profile.PUT("/addresses/:id", userH.UpdateAddress)
		profile.DELETE("/addresses/:id", userH.DeleteAddress)

		wishlist := v1.Group("/wishlist", auth)
		wishlist.GET("", wishlistH.Get)
		wishlist.POST("", wishlistH.Add)
		wishlist.DELETE("/:productId", wishlistH.Remove)
		wishlist.POST("/:productId/move-to-cart", wishlistH.MoveToCart)

		uploads := v1.Group("/admin/uploads", auth, staff)
		uploads.POST("/images", uploadH.UploadImage)
		uploads.DELETE("/images", uploadH.DeleteImage)

		analytics := v1.Group("/admin/analytics", auth, staff)
		analytics.GET("/dashboard", analyticsH.Dashboard)
	}

	if err := mailWorker.Start(ctx); err != nil {
		log.Error("start mail worker", "error", err)
		os.Exit(1)
	}
	if err := analyticsWorker.Start(ctx); err != nil {
		log.Error("start analytics worker", "error", err)
		os.Exit(1)
	}
	cartReaper.Start(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	mailWorker.Stop()
	analyticsWorker.Stop()
	cartReaper.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
