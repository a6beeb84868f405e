package routes

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/crumbcraft/bakehouse-golang/internal/handlers"
	"github.com/crumbcraft/bakehouse-golang/internal/middleware"
)

// CORSMiddleware tells the browser which frontend origin may call the API.
// The origin comes from config so the same binary serves dev and prod.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// Preflight OPTIONS requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// CORS must be the very first thing the router uses
	router.Use(CORSMiddleware())

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Auth Routes (Public) ---
		v1.POST("/register", h.Register)
		v1.POST("/login", h.Login)

		// --- Public Storefront Routes ---
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:slug", h.GetProductBySlug)
		v1.POST("/coupons/validate", h.ValidateCoupon)

		// --- Guest Cart Routes (Public) ---
		v1.POST("/guest-cart", h.CreateGuestCart)
		v1.GET("/guest-cart/:cart_id", h.GetGuestCart)
		v1.PUT("/guest-cart/:cart_id", h.PutGuestCart)

		// --- Checkout & Payment Routes ---
		// Guests check out too, so these take an optional identity rather
		// than requiring a login.
		flow := v1.Group("/")
		flow.Use(middleware.OptionalAuthMiddleware())
		{
			flow.POST("/checkout", h.CreateCheckout)
			flow.GET("/checkout/:id", h.GetCheckout)
			flow.PATCH("/checkout/:id", h.UpdateCheckout)

			flow.POST("/payment/razorpay-order", h.CreateGatewayOrder)
			flow.POST("/payment/verify", h.VerifyPayment)
			flow.GET("/payment/status", h.PaymentStatusQuery)
			flow.POST("/payment/reconcile", h.StartReconcile)
			flow.DELETE("/payment/reconcile/:checkout_id", h.CancelReconcile)

			flow.POST("/orders/create", h.CreateOrder)
		}

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware())
		{
			// --- Cart Routes ---
			auth.GET("/cart", h.GetCart)
			auth.POST("/cart/items", h.AddToCart)
			auth.PUT("/cart/items/:item_id", h.UpdateCartItem)
			auth.DELETE("/cart/items/:item_id", h.DeleteCartItem)
			auth.POST("/cart/merge", h.MergeGuestCart)

			// --- Favorite Routes ---
			auth.GET("/favorites", h.GetMyFavorites)
			auth.POST("/favorites", h.AddFavorite)
			auth.DELETE("/favorites/:product_id", h.RemoveFavorite)

			// --- Address Routes ---
			auth.GET("/addresses", h.GetMyAddresses)
			auth.POST("/addresses", h.CreateAddress)
			auth.PUT("/addresses/:id", h.UpdateAddress)
			auth.DELETE("/addresses/:id", h.DeleteAddress)

			// --- Order Routes ---
			auth.GET("/orders", h.GetMyOrders)
			auth.GET("/orders/:id", h.GetOrderDetails)

			// --- Notification Routes ---
			auth.GET("/notifications", h.GetMyNotifications)
			auth.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
		}

		// --- Admin-Only Routes ---
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware())
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)

			admin.GET("/coupons", h.ListCoupons)
			admin.POST("/coupons", h.CreateCoupon)
			admin.PATCH("/coupons/:id", h.UpdateCoupon)

			admin.GET("/settings", h.GetSettings)
			admin.PATCH("/settings", h.UpdateSettings)
			admin.PUT("/delivery-tiers", h.PutDeliveryTiers)

			admin.GET("/orders", h.ListAllOrders)
			admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)

			admin.GET("/dashboard-stats", h.GetDashboardStats)
		}
	}

	return router
}
