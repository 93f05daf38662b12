package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/orders"
	"storefront/internal/repository/mongodb"
)

func main() {
	config.Load()
	cfg := config.AppEnv

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongodb connect failed", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	db := client.Database(cfg.DBName)
	logger.Info("mongodb connected", zap.String("database", db.Name()))

	if err := database.EnsureIndexes(ctx, db, logging.Named("database")); err != nil {
		logger.Warn("index setup incomplete", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() { _ = publisher.Close() }()

	m := metrics.New()
	store := mongodb.NewStore(db)

	orderService, err := orders.NewService(orders.Deps{
		Orders:          store.Orders(),
		Items:           store.Items(),
		Carts:           store.Carts(),
		Addresses:       store.Addresses(),
		Users:           store.Users(),
		UnitOfWork:      store.UnitOfWork(),
		Events:          publisher,
		Metrics:         m,
		Logger:          logging.Named("order"),
		ReturnWindow:    cfg.ReturnWindow,
		RestockOnReturn: cfg.RestockOnReturn,
	})
	if err != nil {
		logger.Fatal("order service setup failed", zap.Error(err))
	}
	cartService := cart.NewService(store.Carts(), store.Items(), logging.Named("cart"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logging.Named("http")),
		middleware.Metrics(m),
	)

	tokens := handlers.TokenConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	userAuth := middleware.UserAuth(cfg.JWTSecret)

	r.GET("/healthz", handlers.Health(db))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.POST("/auth/register", handlers.Register(db, tokens))
	r.POST("/auth/login", handlers.Login(db, tokens))
	r.POST("/auth/refresh", handlers.Refresh(db, tokens))
	r.POST("/auth/logout", handlers.Logout(db))
	r.GET("/auth/me", userAuth, handlers.GetMe(store.Users()))
	r.POST("/admin/login", handlers.AdminLogin(db, tokens))

	r.GET("/categories", handlers.GetCategories(db))
	r.GET("/categories/:id/subcategories", handlers.GetSubcategories(db))
	r.GET("/items", handlers.GetItems(db))
	r.GET("/items/:id", handlers.GetItem(store.Items()))
	r.GET("/items/:id/reviews", handlers.GetItemReviews(db))
	r.GET("/banners", handlers.GetBanners(db))

	user := r.Group("/")
	user.Use(userAuth)
	{
		user.GET("/cart", handlers.GetCart(cartService))
		user.DELETE("/cart", handlers.ClearCart(cartService))
		user.POST("/cart/items", handlers.AddCartItem(cartService))
		user.PATCH("/cart/items/:entryId", handlers.UpdateCartItem(cartService))
		user.DELETE("/cart/items/:entryId", handlers.RemoveCartItem(cartService))

		user.GET("/addresses", handlers.ListAddresses(store.Addresses()))
		user.POST("/addresses", handlers.CreateAddress(store.Addresses()))
		user.PUT("/addresses/:id", handlers.UpdateAddress(store.Addresses()))
		user.DELETE("/addresses/:id", handlers.DeleteAddress(store.Addresses()))
		user.POST("/addresses/:id/default", handlers.SetDefaultAddress(store.Addresses()))

		user.GET("/wishlist", handlers.GetWishlist(store.Users(), store.Items()))
		user.POST("/wishlist", handlers.AddToWishlist(db, store.Items()))
		user.DELETE("/wishlist/:itemId", handlers.RemoveFromWishlist(db))

		user.POST("/items/:id/reviews", handlers.CreateReview(db, store.Items(), store.Users()))
		user.DELETE("/reviews/:id", handlers.DeleteReview(db))

		user.POST("/orders", handlers.CreateOrder(orderService))
		user.GET("/orders", handlers.ListOrders(orderService))
		user.GET("/orders/stats", handlers.OrderStats(orderService))
		user.GET("/orders/:orderId", handlers.GetOrder(orderService))
		user.GET("/orders/:orderId/timeline", handlers.GetOrderTimeline(orderService))
		user.PATCH("/orders/:orderId/status", handlers.UpdateOrderStatus(orderService))
		user.PATCH("/orders/:orderId/payment-status", handlers.UpdateOrderPaymentStatus(orderService))
		user.POST("/orders/:orderId/cancel", handlers.CancelOrder(orderService))
		user.POST("/orders/:orderId/return", handlers.ReturnOrder(orderService))
		user.POST("/orders/:orderId/reorder", handlers.ReorderOrder(orderService))
	}

	admin := r.Group("/admin/api")
	admin.Use(middleware.AdminAuth(cfg.JWTSecret))
	{
		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db))

		admin.POST("/subcategories", handlers.CreateSubcategory(db))
		admin.PUT("/subcategories/:id", handlers.UpdateSubcategory(db))
		admin.DELETE("/subcategories/:id", handlers.DeleteSubcategory(db))

		admin.GET("/items", handlers.GetAllItems(db))
		admin.POST("/items", handlers.CreateItem(db))
		admin.POST("/items/bulk", handlers.BulkCreateItems(db))
		admin.PUT("/items/:id", handlers.UpdateItem(db, store.Items()))
		admin.DELETE("/items/:id", handlers.DeleteItem(db))
		admin.PUT("/items/:id/stock", handlers.SetItemStock(store.Items()))

		admin.GET("/banners", handlers.GetAllBanners(db))
		admin.POST("/banners", handlers.CreateBanner(db))
		admin.PUT("/banners/:id", handlers.UpdateBanner(db))
		admin.DELETE("/banners/:id", handlers.DeleteBanner(db))

		admin.PATCH("/orders/:orderId/tracking", handlers.UpdateOrderTracking(orderService))
		admin.DELETE("/orders/:orderId", handlers.DeleteOrder(orderService))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
