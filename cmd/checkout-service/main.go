package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	addr "github.com/MikeMC777/checkout-ecom/internal/address"
	"github.com/MikeMC777/checkout-ecom/internal/auth"
	"github.com/MikeMC777/checkout-ecom/internal/config"
	"github.com/MikeMC777/checkout-ecom/internal/db"
	"github.com/MikeMC777/checkout-ecom/internal/httpx"
	"github.com/MikeMC777/checkout-ecom/internal/idempotency"
	ord "github.com/MikeMC777/checkout-ecom/internal/order"
	"github.com/MikeMC777/checkout-ecom/internal/paypal"
)

func main() {
	cfg := config.Load()

	if err := db.RunMigrations(cfg.PostgresDSN, cfg.MigrationsPath); err != nil {
		log.Fatalf("[main] migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[main] postgres: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewRedisStore(rdb, 24*time.Hour)

	orders := ord.NewPGRepo(pool)
	users := auth.NewPGRepo(pool)
	addresses := addr.NewPGRepo(pool)

	gw := paypal.New(paypal.Config{
		Environment:  cfg.PayPalEnv,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		BaseURL:      cfg.PayPalBaseURL,
		ReturnURL:    cfg.ReturnURL,
		CancelURL:    cfg.CancelURL,
		Currency:     cfg.Currency,
	})

	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/auth/login", loginHandler(users))

	authed := r.Group("/", auth.RequireSession(users))
	authed.POST("/checkout", checkoutHandler(orders, gw, idem))
	authed.GET("/orders", listOrdersHandler(orders))
	authed.GET("/orders/:id", getOrderHandler(orders))
	authed.GET("/orders/:id/items", getOrderItemsHandler(orders))
	authed.POST("/addresses", createAddressHandler(addresses))
	authed.GET("/addresses", listAddressesHandler(addresses))
	authed.DELETE("/addresses/:id", deleteAddressHandler(addresses))

	log.Printf("checkout-service listening on %s", cfg.CheckoutSvcAddr)
	log.Fatal(http.ListenAndServe(cfg.CheckoutSvcAddr, r))
}
