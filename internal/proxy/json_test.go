package proxy

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/nilsharvey/anthrogate/internal/apierror"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(context.Background(), rec, map[string]string{"ok": "yes"}, 201)

	if rec.Code != 201 {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != "yes" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAPIError(context.Background(), rec, apierror.InvalidRequest("bad field", "model"))

	if rec.Code != 400 {
		t.Fatalf("expected the error's HTTPStatus to drive the response status, got %d", rec.Code)
	}
	var env apierror.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Type != apierror.KindInvalidRequest {
		t.Fatalf("unexpected error kind: %s", env.Error.Type)
	}
	if env.Error.Param != "model" {
		t.Fatalf("unexpected param: %s", env.Error.Param)
	}
}
