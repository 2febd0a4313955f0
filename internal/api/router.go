package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/opway/opway/docs"
	"github.com/opway/opway/internal/api/handler"
	"github.com/opway/opway/internal/api/middleware"
	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/core/ports"
)

// Dependencies are the services the router exposes over HTTP.
type Dependencies struct {
	AuthService ports.AuthService
	UserService ports.UserService
	Revoker     ports.TokenRevoker
	JWTSecret   string
	Logger      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all API routes registered.
// Health probes are mounted separately by the infrastructure layer.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(requestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddleware("opway"))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	userHandler := handler.NewUserHandler(d.UserService)
	authMiddleware := middleware.Auth(d.JWTSecret, d.Revoker, d.AuthService, d.Logger)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Op Way API is running")
	})
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	auth := e.Group("/api/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", authHandler.Me, authMiddleware)
	auth.POST("/logout", authHandler.Logout, authMiddleware)

	// --- User routes ---
	users := e.Group("/api/users", authMiddleware)
	users.GET("", userHandler.List, adminOnly)
	users.GET("/me", authHandler.Me)
	users.PUT("/me", userHandler.UpdateMe)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id/role", userHandler.SetRole, adminOnly)
	users.DELETE("/:id", userHandler.Delete, adminOnly)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
