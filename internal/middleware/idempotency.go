package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IdempotencyHeader — заголовок с ключом идемпотентности.
const IdempotencyHeader = "Idempotency-Key"

const replayedHeader = "Idempotent-Replayed"

// DefaultIdempotencyTTL — срок хранения ответа по ключу.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore описывает хранилище ключей идемпотентности.
type IdempotencyStore interface {
	Key(scope, id string) string
	Get(ctx context.Context, key string) (string, bool, error)
	Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency защищает денежные операции от повторной отправки. Повтор с тем же
// ключом и телом получает сохранённый ответ (кроме ответов 5xx, после которых ключ освобождается); пока первый запрос выполняется или
// если тело отличается, возвращается 409. При недоступности хранилища запрос
// выполняется без защиты.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.Key(r.Method+" "+r.URL.Path, id)
			pending, _ := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})

			claimed, err := store.Claim(r.Context(), key, string(pending), ttl)
			if err != nil {
				logger.Warn("idempotency store unavailable, serving without protection",
					zap.String("key", id), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !claimed {
				replay(w, r, store, key, hash, logger)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Ответ 5xx не сохраняется: оператор может повторить запрос с тем же ключом.
			if rec.statusOrDefault() >= http.StatusInternalServerError {
				if err := store.Release(context.WithoutCancel(r.Context()), key); err != nil {
					logger.Warn("failed to release idempotency key", zap.String("key", id), zap.Error(err))
				}
				return
			}

			record := idempotencyRecord{
				Status:      rec.statusOrDefault(),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: hash,
			}
			payload, _ := json.Marshal(record)
			if err := store.Put(context.WithoutCancel(r.Context()), key, string(payload), ttl); err != nil {
				logger.Warn("failed to persist idempotent response", zap.String("key", id), zap.Error(err))
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key, hash string, logger *zap.Logger) {
	stored, found, err := store.Get(r.Context(), key)
	if err != nil || !found {
		if err != nil {
			logger.Warn("failed to read idempotency record", zap.Error(err))
		}
		http.Error(w, "request with this Idempotency-Key is already being processed", http.StatusConflict)
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		http.Error(w, "request with this Idempotency-Key is already being processed", http.StatusConflict)
		return
	}
	if record.RequestHash != hash {
		http.Error(w, "Idempotency-Key reused with a different request body", http.StatusConflict)
		return
	}
	if record.Pending {
		http.Error(w, "request with this Idempotency-Key is already being processed", http.StatusConflict)
		return
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		http.Error(w, "corrupted idempotency record", http.StatusConflict)
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrDefault() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
