package api

import (
	"net/http"

	"comanda/internal/kitchen"
	"comanda/internal/models"
	"comanda/internal/orders"
	"comanda/internal/stock"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// Server is the HTTP surface over the order, kitchen and catalog
// subsystems.
type Server struct {
	router    *gin.Engine
	db        *gorm.DB
	orders    *orders.Service
	kitchen   *kitchen.Service
	stock     *stock.Service
	feed      *Feed
	log       zerolog.Logger
	jwtSecret string
}

// NewServer wires the router. When jwtSecret is non-empty the mutating
// catalog routes require a valid bearer token; read routes stay open.
func NewServer(db *gorm.DB, ordersSvc *orders.Service, kitchenSvc *kitchen.Service, stockSvc *stock.Service, feed *Feed, log zerolog.Logger, jwtSecret string) *Server {
	s := &Server{
		router:    gin.Default(),
		db:        db,
		orders:    ordersSvc,
		kitchen:   kitchenSvc,
		stock:     stockSvc,
		feed:      feed,
		log:       log.With().Str("component", "api").Logger(),
		jwtSecret: jwtSecret,
	}
	s.setupRoutes()
	return s
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")
	{
		// Order lifecycle
		v1.POST("/orders", s.CreateOrder)
		v1.POST("/orders/integrated", s.PlaceIntegratedOrder)
		v1.GET("/orders", s.ListOrders)
		v1.GET("/orders/:id", s.GetOrder)
		v1.POST("/orders/:id/confirm", s.ConfirmOrder)
		v1.POST("/orders/:id/ready", s.ReadyOrder)
		v1.POST("/orders/:id/deliver", s.DeliverOrder)
		v1.POST("/orders/:id/close", s.CloseOrder)
		v1.POST("/orders/:id/cancel", s.CancelOrder)

		// Kitchen queue
		v1.GET("/kitchen/orders", s.ListKitchenOrders)
		v1.POST("/kitchen/orders/ingest", s.IngestKitchenOrder)
		v1.GET("/kitchen/stats", s.KitchenStats)
		v1.GET("/kitchen/monitor", s.feed.Handle)
		v1.POST("/kitchen/orders/:id/urgent", s.UrgentKitchenOrder)
		v1.POST("/kitchen/orders/:id/start", s.StartKitchenOrder)
		v1.POST("/kitchen/orders/:id/ready", s.ReadyKitchenOrder)
		v1.POST("/kitchen/orders/:id/deliver", s.DeliverKitchenOrder)
		v1.POST("/kitchen/orders/:id/cancel", s.CancelKitchenOrder)

		// Catalog reads stay open
		v1.GET("/categories", s.ListCategories)
		v1.GET("/ingredients", s.ListIngredients)
		v1.GET("/menu", s.ListMenuItems)
		v1.GET("/menu/:id", s.GetMenuItem)
		v1.GET("/stock", s.ListStock)
		v1.GET("/stock/low", s.ListLowStock)
		v1.POST("/stock/validate", s.ValidateStock)

		v1.GET("/dashboard", s.Dashboard)

		// Catalog mutations behind the optional auth middleware
		admin := v1.Group("")
		if s.jwtSecret != "" {
			admin.Use(s.authMiddleware())
		}
		admin.POST("/categories", s.CreateCategory)
		admin.POST("/ingredients", s.CreateIngredient)
		admin.POST("/menu", s.CreateMenuItem)
		admin.PUT("/menu/:id", s.UpdateMenuItem)
		admin.DELETE("/menu/:id", s.DeactivateMenuItem)
		admin.PUT("/stock/:ingredientID", s.SetStock)
	}
}

// authMiddleware validates bearer tokens. Token issuance is handled by
// an external identity service.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Dashboard aggregates a cross-subsystem snapshot. Each section
// degrades independently so one failing query does not blank the
// whole view.
func (s *Server) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	ordersSection := gin.H{}
	var activeOrders []models.Order
	if list, err := s.orders.ListActive(ctx); err != nil {
		ordersSection["error"] = err.Error()
	} else {
		activeOrders = list
		byState := map[models.OrderState]int{}
		for _, o := range list {
			byState[o.State]++
		}
		ordersSection["active"] = len(list)
		ordersSection["by_state"] = byState
	}

	kitchenSection := gin.H{}
	var queue []models.KitchenOrder
	if list, err := s.kitchen.ListActive(ctx); err != nil {
		kitchenSection["error"] = err.Error()
	} else {
		queue = list
		kitchenSection["queued"] = len(list)
	}

	stockSection := gin.H{}
	if low, err := s.stock.LowStock(ctx); err != nil {
		stockSection["error"] = err.Error()
	} else {
		stockSection["low_stock"] = len(low)
		stockSection["alert"] = len(low) > 0
	}

	sync := "OK"
	if len(activeOrders) != len(queue) {
		sync = "PARTIAL"
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":  ordersSection,
		"kitchen": kitchenSection,
		"stock":   stockSection,
		"sync":    sync,
	})
}
