package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/softdata/cohortsync/pkg/application"
	"github.com/softdata/cohortsync/pkg/httpapi"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsController serves the Prometheus scrape endpoint and a health check.
type OpsController struct {
	metricsPath string
	db          Pinger
}

// NewOpsController exposes metrics on metricsPath unless it is empty. db
// may be nil, in which case the health check only reports the process.
func NewOpsController(metricsPath string, db Pinger) application.Controller {
	return &OpsController{metricsPath: metricsPath, db: db}
}

func (c *OpsController) Key() string {
	return "/healthz"
}

func (c *OpsController) Register(r *mux.Router) {
	if c.metricsPath != "" {
		r.Handle(c.metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", c.health).Methods(http.MethodGet)
}

func (c *OpsController) health(w http.ResponseWriter, r *http.Request) {
	if c.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.db.Ping(ctx); err != nil {
			_ = httpapi.WriteError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", err.Error(), nil)
			return
		}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
