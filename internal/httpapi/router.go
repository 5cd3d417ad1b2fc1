package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/points/internal/oplog"
	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerRequestID       = "X-Request-ID"
	defaultRequestTimeout = 3 * time.Second
)

// Options configures the HTTP router.
type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine serving the point routes.
func NewRouter(pointService *points.Service, options Options) *gin.Engine {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = defaultRequestTimeout
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(options.Logger))
	if len(options.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  options.AllowedOrigins,
			AllowMethods:  []string{"GET", "PATCH", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", "Origin", "Accept", headerRequestID},
			ExposeHeaders: []string{headerRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := &pointHandler{
		pointService:   pointService,
		logger:         options.Logger,
		requestTimeout: options.RequestTimeout,
	}
	pointRoutes := router.Group("/point/:id")
	pointRoutes.GET("", handler.handleBalance)
	pointRoutes.GET("/histories", handler.handleHistory)
	pointRoutes.PATCH("/charge", handler.handleCharge)
	pointRoutes.PATCH("/use", handler.handleUse)

	return router
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestID := ctx.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Header(headerRequestID, requestID)
		ctx.Request = ctx.Request.WithContext(oplog.WithRequestID(ctx.Request.Context(), requestID))
		ctx.Next()
	}
}

func accessLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		requestID, _ := oplog.RequestID(ctx.Request.Context())
		logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		)
	}
}

func withTimeout(ctx *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), timeout)
}
