package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes an outbound HTTP request.
type Request struct {
	// Method defaults to GET.
	Method string
	// Path is appended to BaseURL unless it is an absolute URL.
	Path string
	// Query is merged into the URL query string.
	Query url.Values
	// Headers override the client defaults.
	Headers map[string]string
	// Body accepts io.Reader, []byte, string, url.Values (form encoded) or
	// any value that will be JSON-encoded.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth Auth
}

// Response is the result of an HTTP request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}
