package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genboard/internal/infra"
)

// RateLimit throttles per client IP using a shared counter in the cache so
// the limit holds across API replicas. The limiter fails open: a cache outage
// degrades to no throttling instead of refusing traffic.
func RateLimit(cache infra.Cache, limit int, per time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cache == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIPForRateLimit(r)
			key := fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix()/int64(per.Seconds()))
			count, err := cache.IncrWithExpiry(r.Context(), key, per)
			if err != nil {
				logger.Warn().Err(err).Msg("rate limit: cache unavailable, failing open")
				next.ServeHTTP(w, r)
				return
			}
			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			if count > int64(limit) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(per.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
