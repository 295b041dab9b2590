package handlers

import (
	"net/http"
	"time"

	_ "weather_dashboard/docs"
	"weather_dashboard/internal/logger"
	"weather_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Config holds the optional pieces of the HTTP layer.
type Config struct {
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Location renders observation times; nil means the server's local zone.
	Location *time.Location
	// SecureCookie marks the session cookie Secure (HTTPS deployments).
	SecureCookie bool
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	cfg      Config
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, cfg Config) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Handler{services: services, log: log, cfg: cfg}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(pageTemplate)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.cfg.Metrics))
	}

	// Everything below belongs to a browser session.
	session := router.Group("/", h.sessionMiddleware)
	{
		h.registerPageRoutes(session)
		h.registerAPIRoutes(session)
		session.GET("/ws", h.wsConnect)
	}

	return router
}

func (h *Handler) registerPageRoutes(r *gin.RouterGroup) {
	r.GET("/", h.page)
	r.POST("/search", h.pageSearch)
	r.POST("/refresh", h.pageRefresh)
}

func (h *Handler) registerAPIRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1")
	{
		h.registerDashboardRoutes(api)
		api.GET("/logs", h.getLogs)
	}
}

func (h *Handler) registerDashboardRoutes(api *gin.RouterGroup) {
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("", h.getDashboard)
		// Body example: {"city":"Casablanca"}
		dashboard.POST("/search", h.search)
		dashboard.POST("/refresh", h.refresh)
	}
}
