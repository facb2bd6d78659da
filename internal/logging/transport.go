package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmake-zxb/jk-ui/internal/metrics"
)

// RequestIDHeader carries the correlation ID of an outbound request.
const RequestIDHeader = "X-Request-ID"

// Transport wraps an http.RoundTripper with request logging, request IDs
// and request metrics.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport returns a logging transport around base
// (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = GetRequestID(req.Context())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(WithRequestID(req.Context(), requestID))
	req.Header.Set(RequestIDHeader, requestID)

	logger := WithContext(req.Context())
	logger.Debug("request started",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	resp, err := t.base().RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordHTTPRequest(req.Method, req.URL.Path, 0, duration)
		logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordHTTPRequest(req.Method, req.URL.Path, resp.StatusCode, duration)
	logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, nil
}
