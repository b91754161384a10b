package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/carloslauriano/sendMyFiles/config"
	"github.com/carloslauriano/sendMyFiles/transfer"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// TransferService são as operações do engine expostas por HTTP
type TransferService interface {
	Submit(ctx context.Context, req transfer.SubmitRequest) transfer.SubmitResult
	Claim(ctx context.Context, token string) transfer.ClaimResult
	DirectLink(ctx context.Context, token string) (string, error)
	ListForRecipient(ctx context.Context, email string) ([]transfer.TransferSummary, error)
	QuotaStatus(ctx context.Context, email string) (transfer.QuotaStatus, error)
}

// Pinger verifica uma dependência no health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter monta as rotas HTTP. throttle pode ser nil.
func NewRouter(cfg *config.Config, svc TransferService, health Pinger, throttle Throttle, logger *zap.Logger) http.Handler {
	logger = logger.Named("http")
	h := NewHandlers(svc, health, cfg.Transfer.BaseURL, cfg.Transfer.MaxUploadBytes, logger)

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	router.POST("/upload", h.Upload)
	router.GET("/quota", h.Quota)
	router.GET("/transfers", h.Transfers)
	router.GET("/health", h.Health)

	claims := router.Group("/")
	if throttle != nil {
		claims.Use(throttleMiddleware(throttle, logger))
	}
	claims.GET("/download", h.Download)
	claims.GET("/link", h.Link)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
	})
	return c.Handler(router)
}

// NewHTTPServer cria o servidor HTTP
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
}

// requestLogger registra cada requisição no zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("requisição", fields...)
		} else {
			logger.Info("requisição", fields...)
		}
	}
}
