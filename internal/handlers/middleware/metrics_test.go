package middleware

import (
	"net/http"
	"sync"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type observation struct {
	method string
	route  string
	status int
}

type observerFunc func(method string, route string, status int, took time.Duration)

func (f observerFunc) ObserveHTTP(method string, route string, status int, took time.Duration) {
	f(method, route, status, took)
}

func TestMetricsMiddleware(t *testing.T) {
	var mu sync.Mutex
	var got []observation
	o := observerFunc(func(method string, route string, status int, took time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, observation{method, route, status})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(MetricsMiddleware(o)(mux))
	defer srv.Close()

	for _, path := range []string{"/users/1", "/users/2", "/unknown"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []observation{
		{"GET", "GET /users/{id}", http.StatusAccepted},
		{"GET", "GET /users/{id}", http.StatusAccepted},
		{"GET", "unmatched", http.StatusNotFound},
	}, got, "route label should be the pattern, not the path")
}
