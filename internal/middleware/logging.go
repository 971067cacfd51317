package middleware

import (
	"net/http"
	"time"

	"github.com/2beens/contenthub/pkg"

	log "github.com/sirupsen/logrus"
)

func LogRequest(trustProxyHeaders bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			resp := newStatusRecorder(w)

			next.ServeHTTP(resp, r)

			ip, err := pkg.ReadUserIP(r, trustProxyHeaders)
			if err != nil {
				ip = "unknown"
			}
			log.WithFields(log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   resp.statusCode,
				"ip":       ip,
				"ua":       r.Header.Get("User-Agent"),
				"duration": time.Since(start).String(),
			}).Trace(" ====> request")
		})
	}
}
