package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/2beens/exercisetracker/internal/telemetry/metrics"
	"github.com/2beens/exercisetracker/pkg"

	log "github.com/sirupsen/logrus"
)

func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			rec := newStatusRecorder(respWriter)
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("http: panic serving %s: %v\n%s", req.URL.Path, r, debug.Stack())
					if metricsManager != nil {
						metricsManager.CounterHandleRequestPanic.Inc()
					}
					// the response is already on its way, a second status would only corrupt it
					if rec.wroteHeader {
						return
					}
					pkg.WriteResponse(rec, pkg.ContentType.JSON, `{"error":"internal error"}`, http.StatusInternalServerError)
				}
			}()

			// handler call
			next.ServeHTTP(rec, req)
		})
	}
}
