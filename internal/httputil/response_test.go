package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, 400, "bad input")

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["error"] != "bad input" {
		t.Errorf("error = %q, want %q", body["error"], "bad input")
	}
}

func TestWriteRawJSONEmptyBodyYieldsEmptyObject(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRawJSON(w, nil)

	if got := w.Body.String(); got != "{}" {
		t.Errorf("body = %q, want {}", got)
	}
}

func TestWriteRawJSONPassthrough(t *testing.T) {
	w := httptest.NewRecorder()
	WriteRawJSON(w, []byte(`{"CP-01":{"result":"PASS"}}`))

	if got := w.Body.String(); got != `{"CP-01":{"result":"PASS"}}` {
		t.Errorf("body = %q", got)
	}
}

func TestWriteAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAttachment(w, "report.csv", "text/csv", []byte("a,b\n"))

	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="report.csv"` {
		t.Errorf("content disposition = %q", cd)
	}
	if w.Body.String() != "a,b\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}
