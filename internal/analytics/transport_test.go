package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransportGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/watch/stream/1", r.URL.Path)
		w.Write([]byte(`{"id":"1","title":"test"}`))
	}))
	defer server.Close()

	transport := NewTransport(server.URL, time.Second, slog.Default())

	var out struct {
		Id    string `json:"id"`
		Title string `json:"title"`
	}
	ok := transport.Get(context.Background(), "/watch/stream/1", &out)
	assert.True(t, ok)
	assert.Equal(t, "1", out.Id)
	assert.Equal(t, "test", out.Title)
}

func TestTransportNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := NewTransport(server.URL, time.Second, slog.Default())

	var out map[string]any
	assert.False(t, transport.Get(context.Background(), "/watch/stats/1", &out))
}

func TestTransportBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	transport := NewTransport(server.URL, time.Second, slog.Default())

	var out map[string]any
	assert.False(t, transport.Get(context.Background(), "/watch/stats/1", &out))
}

func TestTransportUnreachable(t *testing.T) {
	// port 1 is never listening
	transport := NewTransport("http://127.0.0.1:1", 100*time.Millisecond, slog.Default())

	var out map[string]any
	assert.False(t, transport.Get(context.Background(), "/watch/stats/1", &out))
	assert.False(t, transport.Post(context.Background(), "/watch/session/start", map[string]any{"a": 1}, &out))
}
