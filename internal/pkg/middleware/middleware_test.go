package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gostocksync/internal/pkg/cache"
	"gostocksync/internal/pkg/logger"
)

// MockCache é uma implementação mock de cache.Client.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetInt(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Incr(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	return req
}

func TestRateLimiter_FirstRequestStartsWindow(t *testing.T) {
	c := new(MockCache)
	c.On("GetInt", mock.Anything, "rate-limit:10.0.0.1").Return(0, cache.ErrCacheMiss)
	c.On("Set", mock.Anything, "rate-limit:10.0.0.1", 1, time.Minute).Return(nil)

	rec := httptest.NewRecorder()
	RateLimiter(c, 3, time.Minute, logger.Nop())(okHandler).ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	c.AssertExpectations(t)
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	c := new(MockCache)
	c.On("GetInt", mock.Anything, "rate-limit:10.0.0.1").Return(3, nil)

	rec := httptest.NewRecorder()
	RateLimiter(c, 3, time.Minute, logger.Nop())(okHandler).ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	c.AssertNotCalled(t, "Incr", mock.Anything, mock.Anything)
}

func TestRateLimiter_IncrementsWithinLimit(t *testing.T) {
	c := new(MockCache)
	c.On("GetInt", mock.Anything, "rate-limit:10.0.0.1").Return(1, nil)
	c.On("Incr", mock.Anything, "rate-limit:10.0.0.1").Return(2, nil)

	rec := httptest.NewRecorder()
	RateLimiter(c, 3, time.Minute, logger.Nop())(okHandler).ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	c.AssertExpectations(t)
}

func TestRateLimiter_CacheFailureDoesNotBlock(t *testing.T) {
	c := new(MockCache)
	c.On("GetInt", mock.Anything, mock.Anything).Return(0, errors.New("redis down"))

	rec := httptest.NewRecorder()
	RateLimiter(c, 3, time.Minute, logger.Nop())(okHandler).ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAndLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(logger.Options{Level: "info", Output: buf})

	var seen string
	h := RequestID(Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestRecoverer(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()

	Recoverer(logger.Nop())(panicking).ServeHTTP(rec, newRequest())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"INTERNAL_ERROR"`)
}
