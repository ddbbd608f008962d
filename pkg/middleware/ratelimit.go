package middleware

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/gorilla/mux"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/softdata/cohortsync/pkg/httpapi"
)

const storePrefix = "cohortsync:limiter"

func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// NewRedisStore shares limiter counters between server instances. url must
// use the redis:// or rediss:// scheme.
func NewRedisStore(url string) (limiter.Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
		Prefix: storePrefix,
	})
}

// RateLimit limits requests per client IP. rate uses the limiter format,
// e.g. "30-M" for thirty requests per minute.
func RateLimit(rate string, store limiter.Store) (mux.MiddlewareFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryStore()
	}
	mw := stdlib.NewMiddleware(
		limiter.New(store, parsed),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = httpapi.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
	)
	return mw.Handler, nil
}
