package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	internal "github.com/reimbursehq/reimbursement-service/internal"
)

// provisionalLockTTL bounds how long an in-progress marker survives if
// the handler dies before recording its response.
const provisionalLockTTL = 60 * time.Second

type idempotencyEntry struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

type idempotencyRecorder struct {
	http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *idempotencyRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *idempotencyRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// IdempotencyMiddleware deduplicates mutating requests carrying an
// Idempotency-Key header. The first request takes a provisional lock in
// redis and stores its response; retries with the same key and body get
// the stored response replayed, retries with a different body get 422.
// Requests without the header pass through untouched.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" || rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
			}
			r.Body = io.NopCloser(bytes.NewBuffer(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			storeKey := "idemp:" + r.Method + ":" + r.URL.Path + ":" + key
			ctx, cancel := internal.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			entry := idempotencyEntry{
				InProgress: true,
				BodySHA256: bodyHash,
				CreatedAt:  time.Now().UTC(),
			}
			raw, _ := json.Marshal(entry)
			acquired, err := rdb.SetNX(ctx, storeKey, raw, provisionalLockTTL).Result()
			if err != nil {
				logger.Error("idempotency store unavailable", "error", err, "key", storeKey)
				writeIdempotencyError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			}

			if !acquired {
				stored, err := loadIdempotencyEntry(ctx, rdb, storeKey)
				if err != nil {
					logger.Error("failed to load idempotency entry", "error", err, "key", storeKey)
					writeIdempotencyError(w, http.StatusConflict, "request with this idempotency key is being processed")
					return
				}
				if stored.BodySHA256 != bodyHash {
					writeIdempotencyError(w, http.StatusUnprocessableEntity, "idempotency key reused with a different request body")
					return
				}
				if stored.InProgress {
					writeIdempotencyError(w, http.StatusConflict, "request with this idempotency key is being processed")
					return
				}

				logger.Info("replaying idempotent response", "key", storeKey, "status", stored.Code)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotency-Replayed", "true")
				w.WriteHeader(stored.Code)
				w.Write(stored.Body)
				return
			}

			recorder := &idempotencyRecorder{ResponseWriter: w, buf: &bytes.Buffer{}}
			next.ServeHTTP(recorder, r)

			code := recorder.code
			if code == 0 {
				code = http.StatusOK
			}

			final := idempotencyEntry{
				Code:       code,
				Body:       recorder.buf.Bytes(),
				BodySHA256: bodyHash,
				CreatedAt:  time.Now().UTC(),
			}
			finalRaw, _ := json.Marshal(final)
			storeCtx, storeCancel := internal.WithTimeout(context.Background(), 2*time.Second)
			defer storeCancel()
			if err := rdb.Set(storeCtx, storeKey, finalRaw, ttl).Err(); err != nil {
				logger.Error("failed to record idempotent response", "error", err, "key", storeKey)
			}
		})
	}
}

func loadIdempotencyEntry(ctx context.Context, rdb *redis.Client, key string) (*idempotencyEntry, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func writeIdempotencyError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
