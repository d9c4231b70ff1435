package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/poebridge/pkg/config"
)

func TestCORSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		cfg        config.CORSConfig
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantHeader map[string]string
	}{
		{
			name:       "echoes allowed origin",
			cfg:        config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://app.example"}},
			method:     http.MethodGet,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "https://app.example"},
		},
		{
			name:       "wildcard echoes any origin",
			cfg:        config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
			method:     http.MethodGet,
			origin:     "https://other.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": "https://other.example"},
		},
		{
			name:       "disallowed origin gets no headers",
			cfg:        config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://app.example"}},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:       "disabled is a passthrough",
			cfg:        config.CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}},
			method:     http.MethodGet,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name: "credentials and exposed headers",
			cfg: config.CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"https://app.example"},
				ExposedHeaders:   []string{"X-Request-ID", "X-Poebridge-Simulated"},
				AllowCredentials: true,
			},
			method:     http.MethodGet,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
			wantHeader: map[string]string{
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Expose-Headers":    "X-Request-ID, X-Poebridge-Simulated",
			},
		},
		{
			name: "preflight answered with 204",
			cfg: config.CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         600,
			},
			method:     http.MethodOptions,
			origin:     "https://app.example",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeader: map[string]string{
				"Access-Control-Allow-Methods": "GET, POST",
				"Access-Control-Allow-Headers": "Authorization, Content-Type",
				"Access-Control-Max-Age":       "600",
			},
		},
		{
			name:       "plain OPTIONS reaches the handler",
			cfg:        config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
			method:     http.MethodOptions,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/v1/models", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			w := httptest.NewRecorder()

			CORSMiddleware(tt.cfg)(ok).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			for k, want := range tt.wantHeader {
				if got := w.Header().Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}
