// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mun0404/IRIS/internal/inspect"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestPostRequest creates a test POST request with a body.
func NewTestPostRequest(path string, body []byte) *http.Request {
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Detections builds a detection list from (label, confidence) pairs.
func Detections(pairs ...any) []inspect.Detection {
	if len(pairs)%2 != 0 {
		panic("Detections requires label/confidence pairs")
	}
	out := make([]inspect.Detection, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, inspect.Detection{
			ClassLabel: pairs[i].(string),
			Confidence: pairs[i+1].(float64),
		})
	}
	return out
}

// PassingConditions returns a condition set where every expected condition
// reads exactly as expected. Useful for driving the run store without the
// evaluator.
func PassingConditions(expected map[string]string) []inspect.ConditionResult {
	conf := 0.95
	out := make([]inspect.ConditionResult, 0, len(expected))
	for name, want := range expected {
		out = append(out, inspect.ConditionResult{
			ConditionName: name,
			Expected:      want,
			Observed:      want,
			Passed:        true,
			Confidence:    &conf,
		})
	}
	return out
}
