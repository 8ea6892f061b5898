package http

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"go.ngs.io/postcodes-api/internal/domain"
	"go.ngs.io/postcodes-api/internal/usecase"
)

// RouterConfig carries the settings SetupRouter needs.
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Auth           *Authenticator
	Logger         *slog.Logger
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(postcodeUC *usecase.PostcodeUseCase, cfg RouterConfig) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	// Setup CORS middleware.
	// Default to allow all origins if none are configured.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders("Authorization", requestIDHeader)
	corsConfig.AddExposeHeaders(requestIDHeader)
	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(postcodeUC, cfg.Auth, logger, cfg.RequestTimeout)

	api := router.Group("/api")

	// Login is only served when token auth is configured.
	postalCodes := api.Group("/postal-codes")
	if cfg.Auth != nil {
		api.POST("/auth/login", handler.Login)
		postalCodes.Use(cfg.Auth.Middleware())
	}

	postalCodes.POST("/distance", handler.CalculateDistance)
	postalCodes.POST("", handler.CreateOrUpdate)
	postalCodes.GET("", handler.ListMappings)
	postalCodes.GET("/:postcode", handler.GetMapping)
	postalCodes.PUT("/:postcode", handler.UpdateMapping)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router, nil
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	// Report JSON field names in validation errors.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v.RegisterValidation("ukpostcode", func(fl validator.FieldLevel) bool {
		return domain.IsUKPostcode(fl.Field().String())
	})
}
