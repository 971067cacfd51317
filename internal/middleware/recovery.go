package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/2beens/contenthub/internal/telemetry/metrics"
	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
)

func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			resp := newStatusRecorder(respWriter)
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("http: panic serving %s: %v\n%s", req.URL.Path, r, debug.Stack())
					if metricsManager != nil {
						metricsManager.CounterHandleRequestPanic.Inc()
					}
					if !resp.wroteHeader {
						pkg.WriteJSONError(resp, http.StatusInternalServerError, "internal server error")
					}
				}
			}()

			next.ServeHTTP(resp, req)
		})
	}
}
