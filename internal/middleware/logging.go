// internal/middleware/logging.go
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware logs every HTTP request with its method, path, duration,
// and remote address. The WebSocket upgrade request passes through here
// once; frame traffic is not logged.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

// LogWebSocketConnect records a successful WebSocket upgrade.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string) {
	logger.WithField("remote", remoteAddr).Info("WebSocket connected")
}

// LogWebSocketDisconnect records the end of a WebSocket session.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, err error) {
	fields := logrus.Fields{"remote": remoteAddr}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("WebSocket disconnected")
}
