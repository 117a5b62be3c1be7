package middleware

import (
	"bytes"
	"net/http"
	"time"

	"payments-service/pkg/response"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

type recordedResponse struct {
	status int
	body   bytes.Buffer
	header http.Header
}

func (r *recordedResponse) Header() http.Header { return r.header }

func (r *recordedResponse) WriteHeader(status int) { r.status = status }

func (r *recordedResponse) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// retried POSTs never move money twice. Redis being down degrades to
// pass-through rather than blocking payments.
func Idempotency(rdb *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || r.Method != http.MethodPost || rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := "idem:" + r.URL.Path + ":" + key
			cached, err := rdb.Get(r.Context(), cacheKey).Bytes()
			if err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotent-Replay", "true")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}
			if err != redis.Nil {
				logger.Warn("idempotency lookup failed, passing through", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			// Claim the key so a concurrent duplicate is rejected while the
			// first request is still in flight.
			ok, err := rdb.SetNX(r.Context(), cacheKey+":lock", 1, time.Minute).Result()
			if err == nil && !ok {
				response.Error(w, http.StatusConflict, "Request with this Idempotency-Key is in progress")
				return
			}

			rec := &recordedResponse{header: w.Header().Clone()}
			next.ServeHTTP(rec, r)

			for k, v := range rec.header {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.status)
			_, _ = w.Write(rec.body.Bytes())

			// Only successful outcomes are replayable; a failed attempt may
			// be retried for real.
			if rec.status >= 200 && rec.status < 300 {
				if err := rdb.Set(r.Context(), cacheKey, rec.body.Bytes(), idempotencyTTL).Err(); err != nil {
					logger.Warn("idempotency store failed", zap.Error(err))
				}
			}
			rdb.Del(r.Context(), cacheKey+":lock")
		})
	}
}
