package http

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opway/opway/internal/infrastructure/http/handlers"
)

// RegisterProbes mounts the health probes and database diagnostics on e.
// None of them require authentication.
func RegisterProbes(e *echo.Echo, db *mongo.Database, rdb *redis.Client) {
	mongoPinger := MongoPinger{DB: db}

	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(map[string]handlers.Pinger{
		"mongodb": mongoPinger,
		"redis":   RedisPinger{Client: rdb},
	})
	dbHandler := handlers.NewDatabaseHandler(mongoPinger)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	e.GET("/api/auth/test-db", dbHandler.Ping)
	e.GET("/api/test-db", dbHandler.Status)
}
