package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(req *http.Request, statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func TestGetReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "harvester/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("<items/>"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, logger.NewTestLogger())
	client.SetHeader("Authorization", "Bearer secret")

	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<items/>", string(body))
}

func TestGetClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		errorType herrors.ErrorType
		retryable bool
	}{
		{http.StatusAccepted, herrors.ErrorTypeProcessing, true},
		{http.StatusTooManyRequests, herrors.ErrorTypeRateLimit, true},
		{http.StatusServiceUnavailable, herrors.ErrorTypeServerError, true},
		{http.StatusUnauthorized, herrors.ErrorTypeAuth, false},
		{http.StatusForbidden, herrors.ErrorTypeAuth, false},
		{http.StatusNotFound, herrors.ErrorTypeNotFound, true},
		{http.StatusBadRequest, herrors.ErrorTypeClientError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := NewClient(5*time.Second, logger.NewNopLogger())
			client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
				return newResponse(req, tt.status, "nope"), nil
			}})

			_, err := client.Get(context.Background(), "https://example.test/thing?id=1")
			require.Error(t, err)

			var apiErr *herrors.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.errorType, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Equal(t, tt.retryable, herrors.IsRetryable(apiErr.Type))
		})
	}
}

func TestGetNetworkError(t *testing.T) {
	client := NewClient(5*time.Second, logger.NewNopLogger())
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}})

	_, err := client.Get(context.Background(), "https://example.test/")
	assert.True(t, herrors.Is(err, herrors.ErrorTypeNetwork))
}

func TestGetTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(50*time.Millisecond, logger.NewNopLogger())
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, herrors.Is(err, herrors.ErrorTypeTimeout))
	assert.True(t, herrors.IsRetryable(herrors.TypeOf(err)))
}

func TestGetCancelledContext(t *testing.T) {
	client := NewClient(5*time.Second, logger.NewNopLogger())
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "https://example.test/")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, herrors.ErrorTypeUnknown, herrors.TypeOf(err))
}

type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Allow() bool                    { return true }
func (l *countingLimiter) Reset()                         {}
func (l *countingLimiter) Wait(ctx context.Context) error { l.waits++; return nil }

func TestGetConsultsLimiter(t *testing.T) {
	client := NewClient(5*time.Second, logger.NewNopLogger())
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return newResponse(req, http.StatusOK, "{}"), nil
	}})
	limiter := &countingLimiter{}
	client.SetLimiter(limiter)

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "https://example.test/")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, limiter.waits)
}

func TestLoggedURLDropsQuery(t *testing.T) {
	tl := logger.NewTestLogger()
	client := NewClient(5*time.Second, tl)
	client.SetTransport(&mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return newResponse(req, http.StatusNotFound, ""), nil
	}})

	_, _ = client.Get(context.Background(), "https://example.test/sparql?query=SELECT")
	warns := tl.GetMessagesByLevel("WARN")
	require.NotEmpty(t, warns)
	assert.Equal(t, "https://example.test/sparql", warns[0].Fields["url"])
}
