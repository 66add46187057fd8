package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// AddLogging attaches a logger carrying the remote address and path to the
// request context and logs every request once it was served.
func AddLogging(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		logger := log.With().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().Msgf("%s served in %d us", r.Method, time.Since(start).Microseconds())
	}
	return http.HandlerFunc(fn)
}
