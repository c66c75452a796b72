package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

var testSecret = []byte("middleware-test-secret")

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("userID"), "role": c.GetString("userRole")})
	})
	r.GET("/", handlers...)
	return r
}

func doRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(testSecret, time.Hour, 7, "nurse", role)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newEngine(AuthMiddleware(testSecret))
	other, err := utils.GenerateAccessToken([]byte("other"), time.Hour, 7, "nurse", "staff")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"foreign signature", "Bearer " + other, http.StatusUnauthorized},
		{"valid", "Bearer " + token(t, "staff"), http.StatusOK},
		{"lowercase scheme", "bearer " + token(t, "staff"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(r, tt.header); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newEngine(OptionalAuthMiddleware(testSecret))

	if w := doRequest(r, ""); w.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", w.Code)
	}
	if w := doRequest(r, "Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}
	w := doRequest(r, "Bearer "+token(t, "admin"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"role":"admin","user_id":7}` {
		t.Errorf("body = %s", body)
	}
}

func TestRoleAuthMiddleware(t *testing.T) {
	r := newEngine(AuthMiddleware(testSecret), RoleAuthMiddleware("admin"))

	if w := doRequest(r, "Bearer "+token(t, "staff")); w.Code != http.StatusForbidden {
		t.Errorf("staff status = %d, want 403", w.Code)
	}
	if w := doRequest(r, "Bearer "+token(t, "ADMIN")); w.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := doRequest(r, "")
	if got := w.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("generated id = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("echoed id = %q", got)
	}
}
