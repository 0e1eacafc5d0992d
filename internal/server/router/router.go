package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/auth"
	"github.com/appolinair2355/Mon/internal/server/handlers"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// TokenValidator checks access tokens issued by the password gate.
type TokenValidator interface {
	Validate(token string) error
}

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.SchoolHandler, validator TokenValidator, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/verify", handler.VerifyAccess)
	api.GET("/students", handler.ListAllStudents)
	api.POST("/students/:category", handler.RegisterStudent)
	api.GET("/students/:category", handler.ListStudents)
	api.GET("/stats", handler.Stats)
	api.GET("/notes", handler.ListNotes)
	api.GET("/notes/filters", handler.NoteFilters)

	protected := api.Group("")
	protected.Use(requireAccess(validator, logger))
	protected.GET("/classes", handler.Classes)
	protected.POST("/notes", handler.SaveNotes)
	protected.POST("/notes/by-class", handler.ClassGradeSheet)
	protected.POST("/students/:category/:id/payments", handler.AddPayment)
	protected.GET("/tuition", handler.Tuition)
	protected.POST("/import", handler.ImportWorkbook)
	protected.GET("/export", handler.ExportWorkbook)

	logger.Info("router initialized")

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requireAccess accepts a bearer token or the access cookie.
func requireAccess(validator TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token, _ = c.Cookie(auth.CookieName)
		}

		if err := validator.Validate(token); err != nil {
			logger.Debug("access token rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "accès refusé"})
			return
		}
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
