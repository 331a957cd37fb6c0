package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type logRecord struct {
	level string
	msg   string
	args  []any
}

type loggerFunc func(level string, msg string, args ...any)

func (f loggerFunc) Info(msg string, v ...any)  { f("info", msg, v...) }
func (f loggerFunc) Error(msg string, v ...any) { f("error", msg, v...) }

func TestLoggerMiddleware(t *testing.T) {
	serve := func(t *testing.T, status int) []logRecord {
		var records []logRecord
		l := loggerFunc(func(level string, msg string, v ...any) {
			records = append(records, logRecord{level: level, msg: msg, args: v})
		})

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, err := w.Write([]byte("hi"))
			require.NoError(t, err, "should write response")
		})

		srv := httptest.NewServer(LoggerMiddleware(l)(h))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test?token=secret")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, status, resp.StatusCode, "unexpected status. Resp: %s", string(body))
		require.Equal(t, "hi", string(body), "should return 'hi' in response")

		return records
	}

	t.Run("request logged", func(t *testing.T) {
		records := serve(t, http.StatusTeapot)

		require.Len(t, records, 1, "logger should be called once")
		rec := records[0]
		require.Equal(t, "info", rec.level)
		require.Equal(t, "got HTTP request", rec.msg, "logger should log 'got HTTP request'")
		require.Len(t, rec.args, 10, "logger should log 10 fields")
		require.Equal(t, "method", rec.args[0])
		require.Equal(t, "GET", rec.args[1])
		require.Equal(t, "path", rec.args[2])
		require.Equal(t, "/test", rec.args[3], "query string should not be logged")
		require.Equal(t, "duration", rec.args[4])
		require.NotEmpty(t, rec.args[5], "duration should not be empty")
		require.Equal(t, "status", rec.args[6])
		require.Equal(t, http.StatusTeapot, rec.args[7])
		require.Equal(t, "size", rec.args[8])
		require.Equal(t, 2, rec.args[9], "size should be 2 (length of 'hi')")
	})

	t.Run("server error logged as error", func(t *testing.T) {
		records := serve(t, http.StatusServiceUnavailable)

		require.Len(t, records, 1)
		require.Equal(t, "error", records[0].level)
		require.Equal(t, "HTTP request failed", records[0].msg)
		require.Equal(t, http.StatusServiceUnavailable, records[0].args[7])
	})
}
