package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
	"github.com/SAP-F-2025/practice-service/internal/validator"
)

// HandlerConfig carries the settings shared by all handlers
type HandlerConfig struct {
	PurchaseURL   string
	MaxImageBytes int64
	CORSOrigins   []string
}

// checkOrigin admits websocket upgrades from the configured CORS origins.
func (cfg HandlerConfig) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type HandlerManager struct {
	sessionHandler *SessionHandler
	creditHandler  *CreditHandler
	historyHandler *HistoryHandler
	verifier       TokenVerifier
	config         HandlerConfig
	logger         utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	verifier TokenVerifier,
	logger utils.Logger,
	cfg HandlerConfig,
) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(serviceManager.Session(), validator, logger, cfg),
		creditHandler:  NewCreditHandler(serviceManager.Credit(), logger, cfg),
		historyHandler: NewHistoryHandler(serviceManager.History(), logger, cfg),
		verifier:       verifier,
		config:         cfg,
		logger:         logger,
	}
}

// SetupRoutes sets up middleware and all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(utils.RequestID())
	router.Use(utils.LoggerMiddleware(hm.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     hm.config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.verifier))
	{
		// Practice session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.OpenSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)
			sessions.POST("/:id/next", hm.sessionHandler.NextQuestion)
			sessions.PUT("/:id/answer", hm.sessionHandler.SetAnswer)
			sessions.POST("/:id/image", hm.sessionHandler.AttachImage)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitAnswer)

			// Microphone
			sessions.GET("/:id/microphone", hm.sessionHandler.Microphone)
			sessions.POST("/:id/recording/start", hm.sessionHandler.StartRecording)
			sessions.POST("/:id/recording/stop", hm.sessionHandler.StopRecording)
		}

		// Credit routes
		credits := v1.Group("/credits")
		{
			credits.GET("", hm.creditHandler.GetBalance)
			credits.GET("/transactions", hm.creditHandler.ListTransactions)
		}

		// History routes
		history := v1.Group("/history")
		{
			history.GET("", hm.historyHandler.ListAttempts)
			history.GET("/stats", hm.historyHandler.GetStats)
			history.GET("/export", hm.historyHandler.ExportAttempts)
		}
	}
}

// HealthCheck reports that the service is up
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "practice-service",
	})
}
