package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/order-service/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func standaloneConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()

	env := map[string]string{
		"STORE_DRIVER":         "memory",
		"EXTERNAL_CLIENT_MODE": "stub",
		"CLIENT_MAX_ATTEMPTS":  "1",
	}
	for k, v := range extra {
		env[k] = v
	}

	cfg, err := config.LoadFrom(env)
	require.NoError(t, err)
	return cfg
}

func createOrder(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_StandaloneServesOrders(t *testing.T) {
	a, err := NewApp(standaloneConfig(t, nil), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	rec := createOrder(t, a.Handler(), `{"memberId":1,"productId":101,"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "CONFIRMED", created.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+created.ID, nil)
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_ReadinessWithoutPostgres(t *testing.T) {
	a, err := NewApp(standaloneConfig(t, nil), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_PaymentDeclinedLeavesNoOrder(t *testing.T) {
	a, err := NewApp(standaloneConfig(t, nil), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	rec := createOrder(t, a.Handler(), `{"memberId":1,"productId":101,"quantity":1,"totalPrice":"1500"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalElements":0`)
}

func TestNewApp_WithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := NewApp(standaloneConfig(t, map[string]string{
		"REDIS_HOST": mr.Host(),
		"REDIS_PORT": mr.Port(),
	}), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })
	require.NotNil(t, a.redis)

	rec := createOrder(t, a.Handler(), `{"memberId":1,"productId":101,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, mr.Exists("order:"+created.ID))
}

func TestNewApp_UnreachableRedisDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mr.Port()
	mr.Close()

	a, err := NewApp(standaloneConfig(t, map[string]string{
		"REDIS_HOST": "127.0.0.1",
		"REDIS_PORT": port,
	}), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })
	assert.Nil(t, a.redis)

	rec := createOrder(t, a.Handler(), `{"memberId":1,"productId":101,"quantity":1}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNewApp_KafkaProducerIsLazy(t *testing.T) {
	a, err := NewApp(standaloneConfig(t, map[string]string{
		"KAFKA_BROKERS": "127.0.0.1:1",
	}), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	assert.NotNil(t, a.producer)
}

func TestNewApp_HTTPAddr(t *testing.T) {
	a, err := NewApp(standaloneConfig(t, map[string]string{"ORDER_HTTP_PORT": "9090"}), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.closeResources() })

	assert.Equal(t, ":9090", a.httpServer.Addr)
}
