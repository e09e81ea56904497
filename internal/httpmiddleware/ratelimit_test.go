package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestTokenBucket_PerStation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewTokenBucket(2, 60)
	now := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.Use(limiter.GinMiddleware())
	r.POST("/v1/scan", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(station string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/scan", nil)
		req.Header.Set(StationHeader, station)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if got := send("norte"); got != want {
			t.Errorf("request %d: got %d want %d", i, got, want)
		}
	}
	if got := send("sur"); got != http.StatusOK {
		t.Errorf("other station must have its own bucket, got %d", got)
	}

	now = now.Add(time.Minute)
	if got := send("norte"); got != http.StatusOK {
		t.Errorf("expected refill after one minute, got %d", got)
	}
}
