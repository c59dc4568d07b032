// Package detect produces object detections from checkpoint camera frames.
//
// The production Detector calls an external inference service over HTTP; the
// rest of the pipeline only sees the Detector interface and a slice of
// detections, so the inference backend can be swapped without touching
// evaluation.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mun0404/IRIS/internal/httputil"
	"github.com/mun0404/IRIS/internal/inspect"
)

// DefaultTimeout bounds one inference round trip. The pipeline treats a
// timeout like any other source failure: UNKNOWN observations, not a stall.
const DefaultTimeout = 5 * time.Second

// DefaultMinConfidence drops detections the model itself is unsure about
// before they reach condition evaluation.
const DefaultMinConfidence = 0.25

// Detector turns one captured frame into detections.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]inspect.Detection, error)
}

// HTTPDetector sends frames to an inference service and decodes its
// detection list.
type HTTPDetector struct {
	client        httputil.HTTPClient
	endpoint      string
	timeout       time.Duration
	minConfidence float64
}

// HTTPOption configures an HTTPDetector.
type HTTPOption func(*HTTPDetector)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPDetector) { h.timeout = d }
}

// WithMinConfidence overrides the confidence floor. Zero keeps everything.
func WithMinConfidence(min float64) HTTPOption {
	return func(h *HTTPDetector) { h.minConfidence = min }
}

// NewHTTPDetector creates a detector posting frames to the given endpoint.
func NewHTTPDetector(client httputil.HTTPClient, endpoint string, opts ...HTTPOption) *HTTPDetector {
	h := &HTTPDetector{
		client:        client,
		endpoint:      endpoint,
		timeout:       DefaultTimeout,
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// wireDetection is the inference service's response schema.
type wireDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Region     [4]float64 `json:"region"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Detect posts the frame and returns detections at or above the confidence
// floor. A non-2xx status, transport error, or undecodable body is returned
// as an error; the caller decides how a failed source maps onto conditions.
func (h *HTTPDetector) Detect(ctx context.Context, image []byte) ([]inspect.Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}

	dets := make([]inspect.Detection, 0, len(wire.Detections))
	for _, d := range wire.Detections {
		if d.Confidence < h.minConfidence {
			continue
		}
		dets = append(dets, inspect.Detection{
			ClassLabel: d.Label,
			Confidence: d.Confidence,
			Region:     d.Region,
		})
	}
	return dets, nil
}

// MockDetector returns scripted detections for tests and dev mode.
type MockDetector struct {
	mu      sync.Mutex
	queue   [][]inspect.Detection
	errs    []error
	Default []inspect.Detection
	Calls   int
}

// NewMockDetector creates an empty mock detector. With nothing queued and no
// Default, Detect returns no detections.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// AddResult queues detections for one Detect call.
func (m *MockDetector) AddResult(dets ...inspect.Detection) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, dets)
	m.errs = append(m.errs, nil)
	return m
}

// AddError queues a failure for one Detect call.
func (m *MockDetector) AddError(err error) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, nil)
	m.errs = append(m.errs, err)
	return m
}

// Detect returns the next queued result, then falls back to Default.
func (m *MockDetector) Detect(ctx context.Context, image []byte) ([]inspect.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i := m.Calls
	m.Calls++
	if i < len(m.queue) {
		return m.queue[i], m.errs[i]
	}
	return m.Default, nil
}
