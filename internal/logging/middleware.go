package logging

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// NewRunID generates a random run id.
func NewRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp if random generation fails
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}

// Transport wraps an http.RoundTripper and logs every outbound request at
// debug level with the run id from the request context.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	// Log the path only; filter query strings can run to kilobytes.
	u := *req.URL
	u.RawQuery = ""

	if err != nil {
		HTTPRequestContext(req.Context(), req.Method, u.String(), 0, duration, "error", err.Error())
		return nil, err
	}
	HTTPRequestContext(req.Context(), req.Method, u.String(), resp.StatusCode, duration)
	return resp, nil
}
