package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	addr "github.com/MikeMC777/checkout-ecom/internal/address"
	"github.com/MikeMC777/checkout-ecom/internal/auth"
	"github.com/MikeMC777/checkout-ecom/internal/idempotency"
	ord "github.com/MikeMC777/checkout-ecom/internal/order"
	"github.com/MikeMC777/checkout-ecom/internal/paypal"
)

const sessionTTL = 7 * 24 * time.Hour

// checkoutHandler runs the full checkout sequence: session, validation,
// total, transactional persistence, payment-provider order, response.
// Error bodies for 401/400/500 are plain text; only success is JSON.
func checkoutHandler(repo ord.Repository, gw *paypal.Client, idem idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		if u == nil {
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req ord.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "Bad request")
			return
		}
		if err := req.Validate(); err != nil {
			c.String(http.StatusBadRequest, "Bad request")
			return
		}

		ctx := c.Request.Context()

		idemKey := ""
		if h := c.GetHeader("Idempotency-Key"); h != "" && idem != nil {
			idemKey = idempotency.Key(u.ID, h)
			prev, err := idem.Get(ctx, idemKey)
			if err != nil {
				log.Printf("[checkout] idempotency lookup: %v", err)
			} else if prev != nil {
				c.Data(prev.StatusCode, "application/json", prev.Body)
				return
			}
		}

		total := req.Total()

		o := &ord.Order{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			Status:    ord.StatusPending,
			Total:     total.StringFixed(2),
			AddressID: req.ShippingAddress.ID,
		}
		items := make([]ord.Item, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, ord.Item{
				ID:        uuid.NewString(),
				OrderID:   o.ID,
				ProductID: it.ID,
				Quantity:  it.Quantity,
				Price:     it.Price.StringFixed(2),
			})
		}
		if err := repo.Create(ctx, o, items); err != nil {
			log.Printf("[checkout] persist order: %v", err)
			c.String(http.StatusInternalServerError, "Internal error")
			return
		}

		// custom_id lets the provider's async confirmation join back to o.ID
		res, err := gw.CreateOrder(ctx, total.StringFixed(2), o.ID)
		if err != nil {
			log.Printf("[checkout] gateway: %v", err)
			if uerr := repo.UpdateStatus(ctx, o.ID, ord.StatusFailed); uerr != nil {
				log.Printf("[checkout] mark order failed: %v", uerr)
			}
			c.String(http.StatusInternalServerError, "Internal error")
			return
		}

		resp := ord.CheckoutResponse{
			PayPalOrderID: res.ID,
			ApprovalURL:   res.ApprovalURL(),
			OrderID:       o.ID,
		}
		if idemKey != "" {
			body, _ := json.Marshal(resp)
			if err := idem.Save(ctx, idemKey, idempotency.StoredResponse{StatusCode: http.StatusOK, Body: body}); err != nil {
				log.Printf("[checkout] idempotency save: %v", err)
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func loginHandler(users auth.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		u, err := users.GetByEmail(c.Request.Context(), req.Email)
		if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}
		s := &auth.Session{
			Token:     uuid.NewString(),
			UserID:    u.ID,
			ExpiresAt: time.Now().UTC().Add(sessionTTL),
		}
		if err := users.CreateSession(c.Request.Context(), s); err != nil {
			log.Printf("[auth] create session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": s.Token, "user_id": u.ID})
	}
}

func getOrderHandler(repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		o, items, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil || o.UserID != u.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
	}
}

func getOrderItemsHandler(repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		o, items, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil || o.UserID != u.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func listOrdersHandler(repo ord.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		orders, err := repo.ListByUser(c.Request.Context(), u.ID, limit, offset)
		if err != nil {
			log.Printf("[orders] list: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if orders == nil {
			orders = []ord.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders, "limit": limit, "offset": offset})
	}
}

func createAddressHandler(repo addr.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		var req addr.CreateAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Line1 == "" || req.City == "" || req.PostalCode == "" || req.Country == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "line1, city, postal_code and country are required"})
			return
		}
		a := &addr.Address{
			ID:         uuid.NewString(),
			UserID:     u.ID,
			Name:       req.Name,
			Line1:      req.Line1,
			Line2:      req.Line2,
			City:       req.City,
			PostalCode: req.PostalCode,
			Country:    req.Country,
		}
		if err := repo.Create(c.Request.Context(), a); err != nil {
			log.Printf("[addresses] create: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func listAddressesHandler(repo addr.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		out, err := repo.ListByUser(c.Request.Context(), u.ID)
		if err != nil {
			log.Printf("[addresses] list: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if out == nil {
			out = []addr.Address{}
		}
		c.JSON(http.StatusOK, gin.H{"addresses": out})
	}
}

func deleteAddressHandler(repo addr.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := auth.CurrentUser(c)
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"), u.ID)
		if err != nil {
			log.Printf("[addresses] delete: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
