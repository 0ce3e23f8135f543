package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/ratelimit"
)

// maxBodyBytes caps a single response; a full 10,000 row SPARQL page is well below it
const maxBodyBytes = 256 << 20

// Client performs single GET attempts and classifies every failure into the
// harvester error taxonomy. It never retries; that is the fetcher's job.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client whose requests time out after timeout
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": "harvester/1.0",
		},
		logger: log,
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetLimiter installs a request ceiling consulted before every attempt
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetTransport replaces the underlying transport, mostly for tests
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Get performs one GET and returns the body of a 200 response.
// Any other outcome is returned as a classified *errors.Error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &herrors.Error{
			Type:    herrors.ErrorTypeClientError,
			Op:      "http.get",
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(err, "failed to read response body")
	}

	return body, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		// a cancelled parent context is shutdown, not a remote failure
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      redact(req),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, classifyTransportError(err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      redact(req),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps the HTTP status to a classified error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	errorType := herrors.ClassifyStatus(resp.StatusCode)
	if errorType == "" {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(errorType),
	}
	if resp.Request != nil {
		fields["url"] = redact(resp.Request)
	}

	switch errorType {
	case herrors.ErrorTypeProcessing:
		c.logger.DebugWithFields("request accepted but still processing", fields)
	case herrors.ErrorTypeServerError:
		c.logger.WarnWithFields("server error", fields)
	default:
		c.logger.WarnWithFields("request rejected", fields)
	}

	return &herrors.Error{
		Type:    errorType,
		Op:      "http.get",
		Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}
}

func classifyTransportError(err error, message string) *herrors.Error {
	errorType := herrors.ErrorTypeNetwork

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		errorType = herrors.ErrorTypeTimeout
	}

	return &herrors.Error{
		Type:    errorType,
		Op:      "http.get",
		Message: fmt.Sprintf("%s: %v", message, err),
		Err:     err,
	}
}

// redact drops the query string, which may hold a multi-kilobyte SPARQL query
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
