package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus(t *testing.T) {
	t.Run("counters", func(t *testing.T) {
		p := NewPrometheus()

		p.TokenIssued("access")
		p.TokenIssued("access")
		p.TokenIssued("refresh")
		p.Refresh(RefreshRejected)
		p.ValidateFailure("expired")
		p.Revoked(ScopeSubject, 3)

		assert.Equal(t, 2.0, testutil.ToFloat64(p.issued.WithLabelValues("access")))
		assert.Equal(t, 1.0, testutil.ToFloat64(p.issued.WithLabelValues("refresh")))
		assert.Equal(t, 1.0, testutil.ToFloat64(p.refresh.WithLabelValues(RefreshRejected)))
		assert.Equal(t, 1.0, testutil.ToFloat64(p.failures.WithLabelValues("expired")))
		assert.Equal(t, 3.0, testutil.ToFloat64(p.revocations.WithLabelValues(ScopeSubject)))
	})

	t.Run("handler exposes metrics", func(t *testing.T) {
		p := NewPrometheus()
		p.TokenIssued("access")
		p.ObserveHTTP(http.MethodPost, "/auth/login", http.StatusOK, 20*time.Millisecond)

		w := httptest.NewRecorder()
		p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.True(t, strings.Contains(body, `authsession_tokens_issued_total{kind="access"} 1`), "body: %s", body)
		assert.Contains(t, body, `authsession_http_request_duration_seconds_count{method="POST",route="/auth/login",status="200"} 1`)
		assert.Contains(t, body, "go_goroutines")
	})

	t.Run("nop", func(t *testing.T) {
		var r Recorder = Nop{}

		require.NotPanics(t, func() {
			r.TokenIssued("access")
			r.Refresh(RefreshOK)
			r.ValidateFailure("malformed")
			r.Revoked(ScopeToken, 1)
			r.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Second)
		})
	})
}
