package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "rentcore/pkg/errors"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"
)

var (
	// ErrRequestInFlight means an earlier request with the same key has not finished.
	ErrRequestInFlight = errors.New("request with this idempotency key is still in flight")
	// ErrKeyReused means the key was first used with a different request body.
	ErrKeyReused = errors.New("idempotency key reused with a different request")
)

// IdempotencyStore tracks keyed requests from the moment they start. Reserve
// either claims the key, returns the finished response, or fails with
// ErrRequestInFlight or ErrKeyReused. A claimed key must be settled with
// Complete or Release.
type IdempotencyStore interface {
	Reserve(key, fingerprint string) (*CachedResponse, error)
	Complete(key string, response *CachedResponse)
	Release(key string)
	Stop()
}

type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

type idempotencyEntry struct {
	fingerprint string
	response    *CachedResponse
	touched     time.Time
}

type InMemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *InMemoryIdempotencyStore) Reserve(key, fingerprint string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if ok && now.Sub(entry.touched) > s.ttl {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		s.entries[key] = &idempotencyEntry{fingerprint: fingerprint, touched: now}
		return nil, nil
	}

	if entry.fingerprint != fingerprint {
		return nil, ErrKeyReused
	}
	if entry.response == nil {
		return nil, ErrRequestInFlight
	}
	return entry.response, nil
}

func (s *InMemoryIdempotencyStore) Complete(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		entry.response = response
		entry.touched = s.now()
	}
}

func (s *InMemoryIdempotencyStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && entry.response == nil {
		delete(s.entries, key)
	}
}

func (s *InMemoryIdempotencyStore) evictLoop() {
	ticker := time.NewTicker(s.evictEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, entry := range s.entries {
				if entry.response != nil && now.Sub(entry.touched) > s.ttl {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) evictEvery() time.Duration {
	if s.ttl > 0 && s.ttl < time.Hour {
		return s.ttl
	}
	return time.Hour
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated key.
// Keys are scoped to the client, method and path, and bound to a hash of the
// body. A retry that races the original gets 409 instead of running twice.
// Failed responses release the key so the caller may retry.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = IdempotencyKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scopedIdempotencyKey(r, headerName)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			fingerprint, err := fingerprintBody(r)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, apperrors.CodeInvalidInput, "Failed to read request body")
				return
			}

			cached, err := store.Reserve(key, fingerprint)
			switch {
			case errors.Is(err, ErrRequestInFlight):
				writeJSONError(w, http.StatusConflict, apperrors.CodeConflict, err.Error())
				return
			case errors.Is(err, ErrKeyReused):
				writeJSONError(w, http.StatusUnprocessableEntity, apperrors.CodeValidation, err.Error())
				return
			case cached != nil:
				replay(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					store.Release(key)
				}
			}()

			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				store.Complete(key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
				completed = true
			}
		})
	}
}

func scopedIdempotencyKey(r *http.Request, headerName string) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}
	key := r.Header.Get(headerName)
	if key == "" {
		return ""
	}
	return r.Header.Get(ClientIDHeader) + " " + r.Method + " " + r.URL.Path + " " + key
}

func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := readAndRestoreBody(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
