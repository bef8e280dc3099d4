package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

func TestProbeRangeSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-0/12345")
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	c := New()
	result, err := c.Probe(context.Background(), srv.URL+"/file.bin")
	require.NoError(t, err)
	assert.True(t, result.RangeSupport)
	assert.Equal(t, int64(12345), result.Size)
	assert.Equal(t, `"abc123"`, result.ETag)
}

func TestProbeRangeNotSupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "500")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	result, err := c.Probe(context.Background(), srv.URL+"/file.bin")
	require.NoError(t, err)
	assert.False(t, result.RangeSupport)
	assert.Equal(t, int64(500), result.Size)
}

func TestProbeTerminalServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Probe(context.Background(), srv.URL+"/missing.bin")
	require.Error(t, err)
	var se *task.ServerError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Terminal())
}

func TestFetchRangeSetsHeader(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	c := New()
	resp, err := c.FetchRange(context.Background(), srv.URL+"/file.bin", 0, 99)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "bytes=0-99", gotRange)
}

func TestFetchTooManyRequestsCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New()
	_, err := c.FetchFull(context.Background(), srv.URL+"/file.bin")
	require.Error(t, err)
	var se *task.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(5), se.RetryAfter)
	assert.False(t, se.Terminal())
}
