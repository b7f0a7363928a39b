package cache

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestKeyCoversVersionAndPath(t *testing.T) {
	a := NewCache(time.Minute, 0, "2024.2")
	defer a.Close()
	b := NewCache(time.Minute, 0, "2025.1")
	defer b.Close()

	body := []byte(`{"left":{}}`)
	assert.Equal(t, a.Key("/v1/synastry/report", body), a.Key("/v1/synastry/report", body))
	assert.NotEqual(t, a.Key("/v1/synastry/report", body), a.Key("/v1/synastry/directional", body))
	assert.NotEqual(t, a.Key("/v1/synastry/report", body), b.Key("/v1/synastry/report", body))
}

func TestExpiryAndEviction(t *testing.T) {
	c := NewCache(20*time.Millisecond, 2, "v")
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))
	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("c")
	assert.False(t, ok)
	assert.Equal(t, 1, c.evictExpired())
	assert.Equal(t, 0, c.Size())
}

func TestMiddleware(t *testing.T) {
	c := NewCache(time.Minute, 10, "v")
	defer c.Close()
	metrics := monitoring.NewMetrics()
	prom := monitoring.NewPromRegistry()

	calls := 0
	r := gin.New()
	r.Use(c.Middleware(nil, []Recorder{metrics, prom}, "/v1/synastry/report"))
	r.POST("/v1/synastry/report", func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"percent": 61})
	})
	r.POST("/v1/synastry/batch", func(ctx *gin.Context) {
		calls++
		ctx.Status(http.StatusOK)
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
		return w
	}

	w := post("/v1/synastry/report", `{"x":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(CacheHeader))

	w = post("/v1/synastry/report", `{"x":1}`)
	assert.Equal(t, "HIT", w.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"percent":61}`, w.Body.String())
	assert.Equal(t, 1, calls)

	post("/v1/synastry/report", `{"x":2}`)
	assert.Equal(t, 2, calls)

	post("/v1/synastry/batch", `{}`)
	post("/v1/synastry/batch", `{}`)
	assert.Equal(t, 4, calls)

	assert.Equal(t, int64(1), metrics.CacheHits)
	assert.Equal(t, int64(2), metrics.CacheMisses)
	assert.Equal(t, int64(1), c.Stats()["hits"])
}
