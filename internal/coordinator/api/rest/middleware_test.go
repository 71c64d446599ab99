package rest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/mrstep/internal/shared/logging"
)

// mockLogger captures formatted log lines
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func newMockLogger() *mockLogger {
	return &mockLogger{}
}

func (m *mockLogger) Debug(msg string, args ...any)   { m.log("DEBUG", msg, args...) }
func (m *mockLogger) Info(msg string, args ...any)    { m.log("INFO", msg, args...) }
func (m *mockLogger) Warn(msg string, args ...any)    { m.log("WARN", msg, args...) }
func (m *mockLogger) Error(msg string, args ...any)   { m.log("ERROR", msg, args...) }
func (m *mockLogger) Fatal(msg string, args ...any)   { m.log("FATAL", msg, args...) }
func (m *mockLogger) With(args ...any) logging.Logger { return m }

func (m *mockLogger) log(level, msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	formatted := fmt.Sprintf("[%s] %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		formatted += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	m.messages = append(m.messages, formatted)
}

func (m *mockLogger) getOutput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.messages, "\n")
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"NotFound", http.StatusNotFound},
		{"Conflict", http.StatusConflict},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newMockLogger()
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("body"))
			})

			w := httptest.NewRecorder()
			LoggingMiddleware(logger)(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

			require.Equal(t, tt.statusCode, w.Code)
			logOutput := logger.getOutput()
			require.Contains(t, logOutput, "HTTP request")
			require.Contains(t, logOutput, "method=GET")
			require.Contains(t, logOutput, "path=/api/jobs")
			require.Contains(t, logOutput, fmt.Sprintf("status=%d", tt.statusCode))
			require.Contains(t, logOutput, "bytes=4")
		})
	}
}

func TestResponseWriterDefaultStatusCode(t *testing.T) {
	logger := newMockLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	w := httptest.NewRecorder()
	LoggingMiddleware(logger)(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, logger.getOutput(), "status=200")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := newMockLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	RecoveryMiddleware(logger)(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	logOutput := logger.getOutput()
	require.Contains(t, logOutput, "[ERROR] Panic recovered")
	require.Contains(t, logOutput, "something went wrong")
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		require.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, "req-42", seen)
		require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
}

func TestChainMiddleware(t *testing.T) {
	logger := newMockLogger()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/panic" {
			panic("test panic")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := ChainMiddleware(
		handler,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.Header.Set(RequestIDHeader, "chain-1")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, logger.getOutput(), "request_id=chain-1")

	w = httptest.NewRecorder()
	wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, logger.getOutput(), "path=/panic")
}
