package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rentcore/pkg/client"
	"rentcore/pkg/config"
	"rentcore/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type echoHandler struct{}

func (echoHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/echo", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusCreated)
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		StorageDriver:     config.DriverMemory,
		LockDriver:        config.DriverMemory,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1 << 20,
		ShutdownTimeout:   time.Second,
		Log:               logger.Nop(),
		Client:            client.NewClient(),
	}
}

func TestApplication_Routing(t *testing.T) {
	a := NewApplication(testConfig())
	a.SetApp(echoHandler{})
	defer a.idempotencyStore.Stop()
	defer a.rateLimiter.Stop()

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		wantStatus  int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"ready on memory driver", http.MethodGet, "/ready", "", http.StatusOK},
		{"app route", http.MethodPost, "/api/v1/echo", "application/json", http.StatusCreated},
		{"wrong content type", http.MethodPost, "/api/v1/echo", "text/plain", http.StatusUnsupportedMediaType},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
