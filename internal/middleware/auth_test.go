package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ecotrace/footprint-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestRouter(t *testing.T) (*gin.Engine, *uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	var seen uuid.UUID
	router := gin.New()
	router.Use(NewAuthMiddleware(log, testSecret).RequireAuth())
	router.GET("/protected", func(c *gin.Context) {
		id, ok := CompanyID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		seen = id
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestRequireAuthAcceptsValidBearerToken(t *testing.T) {
	router, seen := newTestRouter(t)
	companyID := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"company_id": companyID.String(),
		"exp":        time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", w.Code)
	}
	if *seen != companyID {
		t.Fatalf("company id: want=%s got=%s", companyID, *seen)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}
}

func TestRequireAuthRejectsWrongSecret(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, "other-secret", jwt.MapClaims{
		"company_id": uuid.NewString(),
		"exp":        time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"company_id": uuid.NewString(),
		"exp":        time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}
}

func TestRequireAuthRejectsMissingCompanyClaim(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}
}
