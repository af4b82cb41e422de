package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloommarket/internal/handlers"
	"bloommarket/internal/middleware"
)

// CORSMiddleware lets the web app (served from the chat platform's
// domain) call the API from the browser.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Telegram-ID, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(CORSMiddleware())
	router.Use(middleware.Prometheus())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/media/*filepath", h.Media.Serve)

	auth := middleware.TelegramAuth(h.DB)
	optionalAuth := middleware.OptionalTelegramAuth(h.DB)
	adminOnly := middleware.AdminOnly(h.Cfg.Bot.AdminIDs)

	api := router.Group("/api")
	{
		api.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})
		api.GET("/bot/info", h.GetBotInfo)

		// --- Profile ---
		api.GET("/users/me", auth, h.GetMe)
		api.PATCH("/users/me", auth, h.UpdateMe)

		// --- Shops ---
		// Literal routes must be registered before the :id parameter route.
		api.GET("/shops/my", auth, h.GetMyShop)
		api.GET("/shops/my/statistics", auth, h.GetMyShopStatistics)
		api.PATCH("/shops/my", auth, h.UpdateMyShop)
		api.POST("/shops/my/photo", auth, h.UploadMyShopPhoto)
		api.GET("/shops/:id", optionalAuth, h.GetShop)
		api.GET("/shops/:id/reviews", h.GetShopReviews)
		api.POST("/shops/:id/reviews", auth, h.CreateReview)

		// --- Catalog ---
		api.GET("/categories", h.GetAllCategories)
		api.GET("/categories/tree", h.GetCategoryTree)
		api.GET("/products", optionalAuth, h.GetAllProducts)
		api.GET("/products/:id", optionalAuth, h.GetProduct)
		api.POST("/products", auth, h.CreateProduct)
		api.PATCH("/products/:id", auth, h.UpdateProduct)
		api.DELETE("/products/:id", auth, h.DeleteProduct)
		api.POST("/products/:id/media", auth, h.UploadProductMedia)

		// --- Cart ---
		cart := api.Group("/cart", auth)
		{
			cart.GET("", h.GetCart)
			cart.GET("/summary", h.GetCartSummary)
			cart.POST("", h.AddToCart)
			cart.PATCH("/:id", h.UpdateCartItem)
			cart.DELETE("/:id", h.RemoveCartItem)
			cart.DELETE("", h.ClearCart)
		}

		// --- Favorites ---
		api.GET("/favorites", auth, h.GetFavorites)
		api.POST("/favorites/:id", auth, h.AddFavorite)
		api.DELETE("/favorites/:id", auth, h.RemoveFavorite)

		// --- Orders ---
		orders := api.Group("/orders", auth)
		{
			orders.POST("", h.PlaceOrder)
			orders.GET("", h.GetMyOrders)
			orders.GET("/shop", h.GetShopOrders)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id/status", h.UpdateOrderStatus)
			orders.POST("/:id/cancel", h.CancelOrder)
		}

		// --- Subscriptions ---
		api.GET("/subscriptions/plans", h.GetSubscriptionPlans)
		api.GET("/subscriptions/my", auth, h.GetMySubscription)

		// --- Promos & banners ---
		api.POST("/promos/validate", auth, h.ValidatePromo)
		api.GET("/banners", h.GetBanners)

		// --- Geocoding ---
		api.GET("/geocode/autocomplete", h.GeocodeAutocomplete)
		api.GET("/geocode/search", h.Geocode)
		api.GET("/geocode/reverse", h.GeocodeReverse)

		// --- Admin ---
		admin := api.Group("/admin", auth, adminOnly)
		{
			admin.GET("/stats", h.AdminStats)
			admin.GET("/applications", h.AdminListApplications)
			admin.POST("/applications/:id/decide", h.AdminDecideApplication)
			admin.PATCH("/shops/:id/active", h.AdminSetShopActive)
			admin.POST("/shops/:id/verify", h.AdminVerifyShop)
			admin.POST("/subscriptions/grant", h.AdminGrantSubscription)
			admin.GET("/promos", h.AdminListPromos)
			admin.POST("/promos", h.AdminCreatePromo)
			admin.DELETE("/promos/:id", h.AdminDeactivatePromo)
			admin.POST("/categories", h.CreateCategory)
			admin.POST("/categories/:id/icon", h.UploadCategoryIcon)
			admin.DELETE("/categories/:id", h.DeleteCategory)
			admin.POST("/banners", h.CreateBanner)
			admin.POST("/banners/:id/image", h.UploadBannerImage)
			admin.DELETE("/banners/:id", h.DeleteBanner)
		}
	}

	return router
}
