package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStoreMetrics struct {
	ops   int
	bytes int
}

func (m *countingStoreMetrics) ObserveOperation(string, time.Duration, error) { m.ops++ }
func (m *countingStoreMetrics) RecordBytes(_ string, n int)                   { m.bytes += n }

func TestRegistryLifecycle(t *testing.T) {
	Disable()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	t.Cleanup(Disable)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	// Constructors without a registered implementation stay nil.
	assert.Nil(t, NewCacheMetrics())
}

func TestHandler(t *testing.T) {
	InitRegistry()
	t.Cleanup(Disable)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestHandlerWhenDisabled(t *testing.T) {
	Disable()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNilSafeHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveOperation(nil, "read", time.Millisecond, nil)
		RecordBytes(nil, "write", 10)
	})

	m := &countingStoreMetrics{}
	ObserveOperation(m, "read", time.Millisecond, nil)
	RecordBytes(m, "write", 10)
	assert.Equal(t, 1, m.ops)
	assert.Equal(t, 10, m.bytes)
}
