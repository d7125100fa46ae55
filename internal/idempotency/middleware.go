package idempotency

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// Middleware повторяет сохраненные ответы для POST запросов с заголовком Idempotency-Key.
// Сохраняются только ответы без ошибки сервера: после 5xx клиент может повторить запрос.
type Middleware struct {
	Store       Store
	ActorHeader string
	Logger      *log.Logger
	Timeout     time.Duration
}

// Wrap оборачивает обработчик. Пути из skip обрабатываются без идемпотентности.
func (m *Middleware) Wrap(next http.Handler, skip ...string) http.Handler {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderKey)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := skipped[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		recordKey := Key(r.Header.Get(m.ActorHeader), r.Method+" "+r.URL.Path, key)

		ctx, cancel := context.WithTimeout(r.Context(), m.timeout())
		record, found, err := m.Store.Get(ctx, recordKey)
		cancel()
		if err != nil {
			// без хранилища запрос выполняется как обычный
			m.Logger.Printf("idempotency lookup failed: %v", err)
		}
		if found {
			if record.ContentType != "" {
				w.Header().Set("Content-Type", record.ContentType)
			}
			w.Header().Set(HeaderReplayed, "true")
			w.WriteHeader(record.Status)
			_, _ = w.Write(record.Body)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			return
		}
		ctx, cancel = context.WithTimeout(context.WithoutCancel(r.Context()), m.timeout())
		defer cancel()
		err = m.Store.Save(ctx, recordKey, Record{
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			m.Logger.Printf("idempotency save failed: %v", err)
		}
	})
}

func (m *Middleware) timeout() time.Duration {
	if m.Timeout <= 0 {
		return 2 * time.Second
	}
	return m.Timeout
}

type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
