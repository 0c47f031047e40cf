package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pinmap/internal/adapters/upstream"
)

func TestGetJSON_DecodesBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("X-WP-TotalPages", "3")
		_, _ = w.Write([]byte(`{"name":"Marrakech"}`))
	}))
	defer srv.Close()

	c := upstream.New("pinmap-test", time.Second)
	var out struct {
		Name string `json:"name"`
	}
	hdr, err := c.GetJSON(context.Background(), "test.get", srv.URL+"/city", &out)
	require.NoError(t, err)
	assert.Equal(t, "Marrakech", out.Name)
	assert.Equal(t, "3", hdr.Get("X-WP-TotalPages"))
}

func TestGetJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	c := upstream.New("pinmap-test", time.Second)
	var out map[string]any
	_, err := c.GetJSON(context.Background(), "test.get", srv.URL, &out)

	var se *upstream.StatusError
	require.True(t, errors.As(err, &se), "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Len(t, se.Body, 512)
}

func TestGetJSON_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := upstream.New("pinmap-test", time.Second)
	var out map[string]any
	_, err := c.GetJSON(context.Background(), "test.get", srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestGetJSON_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := upstream.New("pinmap-test", 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var out map[string]any
	start := time.Now()
	_, err := c.GetJSON(ctx, "test.get", srv.URL, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedact(t *testing.T) {
	got := upstream.Redact("https://api.mapbox.com/directions/v5/mapbox/walking/1,2;3,4?access_token=pk.secret&overview=full")
	assert.NotContains(t, got, "pk.secret")
	assert.Contains(t, got, "access_token=REDACTED")
	assert.Contains(t, got, "overview=full")

	plain := "https://data.hyrosy.com/wp-json/wp/v2/locations?city=fes"
	assert.Equal(t, plain, upstream.Redact(plain))
}
