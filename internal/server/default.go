package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/softdata/cohortsync/pkg/application"
	"github.com/softdata/cohortsync/pkg/configuration"
	"github.com/softdata/cohortsync/pkg/middleware"
	"github.com/softdata/cohortsync/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default installs the shared middleware stack and builds the HTTP server.
// Modules must be loaded before calling it.
func Default(options *DefaultOptions) *server.HTTPServer {
	app := options.Application
	app.RegisterMiddleware(
		// Opens the root span for each request.
		middleware.WithLogger(options.Logger, options.Configuration.RequestIDHeader),
		middleware.ProvidePool(options.Pool),
		middleware.Cors(options.Configuration.Origins()...),
	)
	return server.NewHTTPServer(app)
}

// UploadRateLimit builds the limiter for the upload endpoint, or nil when
// rate limiting is disabled.
// A redis store that cannot be reached falls back to memory.
func UploadRateLimit(conf *configuration.Configuration, logger logrus.FieldLogger) (mux.MiddlewareFunc, error) {
	if !conf.RateLimit.Enabled {
		return nil, nil
	}
	var store limiter.Store
	switch conf.RateLimit.Storage {
	case "redis":
		var err error
		store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
			store = middleware.NewMemoryStore()
		}
	default:
		store = middleware.NewMemoryStore()
	}
	return middleware.RateLimit(conf.RateLimit.Rate, store)
}
