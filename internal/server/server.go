package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/broker"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/config"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/database"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/metrics"
	appmiddleware "github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/middleware"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/notification"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/repository"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/sanitize"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/service"
	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       *database.Service
	redis    *redis.Client
	producer *broker.Producer
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service) (*Server, error) {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(appmiddleware.LoggingMiddleware(logger))
	router.Use(appmiddleware.ErrorHandlingMiddleware(logger))
	router.Use(appmiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	router.Use(appmiddleware.RateLimitMiddleware(redisClient, appmiddleware.RateLimitConfig{
		RequestsPerWindow: 120,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		appmiddleware.RespondWithJSON(w, http.StatusOK, db.Health(ctx))
	})

	// Prometheus scrape endpoint
	router.Handle("/metrics", metrics.Handler())

	// Outbound integrations; both degrade to no-ops when disabled so
	// the order pipeline never depends on them being reachable.
	var mailer notification.Mailer = notification.NopMailer{}
	if cfg.SMTP.Enabled {
		m, err := notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp mailer: %w", err)
		}
		mailer = m
	}

	var producer *broker.Producer
	var events broker.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		events = broker.NewEventPublisher(producer)
	}

	// Initialize repositories
	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	categoryRepo := repository.NewCategoryRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	cartRepo := repository.NewCartRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)
	reviewRepo := repository.NewReviewRepository(sqlDB)
	tokenStore := repository.NewTokenStore(redisClient)

	// Initialize services
	userService := service.NewUserService(userRepo, tokenStore, cfg.JWT.Secret)
	productService := service.NewProductService(productRepo, categoryRepo, logger)
	cartService := service.NewCartService(cartRepo, productRepo, logger)
	orderService := service.NewOrderService(
		orderRepo, productRepo, userRepo,
		mailer, notification.NewReceiptRenderer(), events,
		logger,
	)
	reviewService := service.NewReviewService(
		reviewRepo, orderRepo, productRepo,
		sanitize.NewWordFilter(sanitize.DefaultBlockedWords),
		logger,
	)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	reviewHandler := transport.NewReviewHandler(reviewService, logger)

	// Create auth middleware
	authMiddleware := appmiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := appmiddleware.RequireAdmin(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	cartHandler.RegisterRoutes(router, authMiddleware)
	orderHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)
	reviewHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:   cfg,
		logger:   logger,
		db:       db,
		redis:    redisClient,
		producer: producer,
	}

	return server, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Error("Failed to close event producer", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
