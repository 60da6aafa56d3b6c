package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	cases := []struct {
		name         string
		allowed      []string
		method       string
		path         string
		origin       string
		preflight    bool
		wantStatus   int
		wantOrigin   string
		wantUpstream bool
	}{
		{
			name:         "listed origin reaches availability",
			allowed:      []string{"https://book.clinic.test"},
			method:       http.MethodGet,
			path:         "/api/calendly/availability?date=2099-01-05",
			origin:       "https://book.clinic.test",
			wantStatus:   http.StatusOK,
			wantOrigin:   "https://book.clinic.test",
			wantUpstream: true,
		},
		{
			name:         "configured origin is trimmed",
			allowed:      []string{" https://book.clinic.test/ ", ""},
			method:       http.MethodGet,
			path:         "/api/stats",
			origin:       "https://book.clinic.test",
			wantStatus:   http.StatusOK,
			wantOrigin:   "https://book.clinic.test",
			wantUpstream: true,
		},
		{
			name:         "vite dev server",
			allowed:      DevOrigins,
			method:       http.MethodPost,
			path:         "/api/chat",
			origin:       "http://localhost:5173",
			wantStatus:   http.StatusOK,
			wantOrigin:   "http://localhost:5173",
			wantUpstream: true,
		},
		{
			name:         "unknown origin is served without headers",
			allowed:      []string{"https://book.clinic.test"},
			method:       http.MethodGet,
			path:         "/api/calendly/availability",
			origin:       "https://elsewhere.test",
			wantStatus:   http.StatusOK,
			wantUpstream: true,
		},
		{
			name:         "wildcard echoes caller",
			allowed:      []string{"*"},
			method:       http.MethodGet,
			path:         "/health",
			origin:       "https://kiosk.clinic.test",
			wantStatus:   http.StatusOK,
			wantOrigin:   "https://kiosk.clinic.test",
			wantUpstream: true,
		},
		{
			name:       "preflight for booking",
			allowed:    []string{"https://book.clinic.test"},
			method:     http.MethodOptions,
			path:       "/api/calendly/book",
			origin:     "https://book.clinic.test",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://book.clinic.test",
		},
		{
			name:       "preflight from unknown origin",
			allowed:    []string{"https://book.clinic.test"},
			method:     http.MethodOptions,
			path:       "/api/calendly/cancel",
			origin:     "https://elsewhere.test",
			preflight:  true,
			wantStatus: http.StatusForbidden,
		},
		{
			name:         "same-origin request",
			allowed:      []string{"https://book.clinic.test"},
			method:       http.MethodPost,
			path:         "/api/calendly/book",
			wantStatus:   http.StatusOK,
			wantUpstream: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				upstream = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantUpstream, upstream)
			assert.Equal(t, tc.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantOrigin != "" {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Conversation-ID")
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}
