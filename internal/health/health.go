package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/exercisetracker/pkg"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"

	componentDisabled = "disabled"
	checkTimeout      = 2 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Report struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Redis  string `json:"redis"`
}

// Handler reports whether the store and redis are reachable.
// The store is required; redis only backs rate limiting, so losing it degrades the service.
type Handler struct {
	store Pinger
	rdb   *redis.Client
}

// NewHandler creates the health handler. rdb may be nil when redis is not configured.
func NewHandler(store Pinger, rdb *redis.Client) *Handler {
	return &Handler{
		store: store,
		rdb:   rdb,
	}
}

func (h *Handler) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	report := Report{
		Status: StatusOK,
		Store:  StatusOK,
		Redis:  componentDisabled,
	}

	if err := h.store.Ping(ctx); err != nil {
		log.Errorf("health: store ping: %s", err)
		report.Store = err.Error()
		report.Status = StatusDown
	}

	if h.rdb != nil {
		report.Redis = StatusOK
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			log.Warnf("health: redis ping: %s", err)
			report.Redis = err.Error()
			if report.Status == StatusOK {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	status := http.StatusOK
	if report.Status == StatusDown {
		status = http.StatusServiceUnavailable
	}

	reportJson, err := json.Marshal(report)
	if err != nil {
		log.Errorf("marshal health report: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, reportJson, status)
}
