package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/2beens/catalogguard/internal/ratelimit"
	"github.com/2beens/catalogguard/internal/telemetry/metrics"
	"github.com/2beens/catalogguard/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=rate_limiting_mocks_test.go -package=middleware_test

type RequestRateLimiter interface {
	Check(ctx context.Context, key string, limit ratelimit.Limit) (ratelimit.Result, error)
}

// RateLimit throttles requests per client key. The counters are namespaced by limiterName,
// tooManyMsgFormat gets the retry hint in minutes.
func RateLimit(
	rateLimiter RequestRateLimiter,
	limiterName string,
	limit ratelimit.Limit,
	tooManyMsgFormat string,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := pkg.ReadClientKey(r)
			res, err := rateLimiter.Check(r.Context(), ratelimit.Key(limiterName, clientKey), limit)
			if err != nil {
				log.Errorf("rate limiter [%s]: %s", limiterName, err)
				pkg.WriteJSONError(w, http.StatusInternalServerError, "rate limit internal error")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.WithLabelValues(limiterName).Inc()
			}
			log.Debugf("rate limiter [%s]: client [%s] limited for %s", limiterName, clientKey, res.RetryAfter)

			w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
			pkg.WriteJSONError(w, http.StatusTooManyRequests, fmt.Sprintf(tooManyMsgFormat, res.RetryAfterMinutes()))
		})
	}
}
