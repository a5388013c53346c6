package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/catalogsvc/internal/auth"

	log "github.com/sirupsen/logrus"
)

var sensitiveParams = []string{"password", "token", "secret"}

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !log.IsLevelEnabled(log.TraceLevel) {
				next.ServeHTTP(w, r)
				return
			}

			begin := time.Now()
			resp := newResponseWriter(w)
			next.ServeHTTP(resp, r)

			_, cookieErr := r.Cookie(auth.SessionCookieName)
			log.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"query":       redactQuery(r.URL.Query()),
				"status":      resp.statusCode,
				"duration":    time.Since(begin).String(),
				"has_session": cookieErr == nil,
				"ua":          r.Header.Get("User-Agent"),
			}).Trace(" ====> request")
		})
	}
}

func redactQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	redacted := url.Values{}
	for key, values := range query {
		if isSensitiveParam(key) {
			redacted[key] = []string{"[REDACTED]"}
			continue
		}
		redacted[key] = values
	}
	return redacted.Encode()
}

func isSensitiveParam(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveParams {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
