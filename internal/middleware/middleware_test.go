package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(), CORS(origins))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantStatus int
		wantAllow  string
	}{
		{"wildcard", []string{"*"}, "http://localhost:3000", http.MethodGet, http.StatusOK, "http://localhost:3000"},
		{"listed", []string{"http://a.example"}, "http://a.example", http.MethodGet, http.StatusOK, "http://a.example"},
		{"not listed", []string{"http://a.example"}, "http://b.example", http.MethodGet, http.StatusOK, ""},
		{"no origin header", []string{"*"}, "", http.MethodGet, http.StatusOK, ""},
		{"preflight", []string{"*"}, "http://localhost:3000", http.MethodOptions, http.StatusNoContent, "http://localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(tt.origins)

			req := httptest.NewRequest(tt.method, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
		})
	}
}
