package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]string{"id": "abc"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "abc" {
		t.Errorf("body = %v", body)
	}
}

func TestJSONResponseBuilder_EmptyBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").
		Header("Retry-After", "60").
		Write(w)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Error("Retry-After header not set")
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		want    int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("invalid"), http.StatusUnprocessableEntity},
		{"not found", NotFoundError("missing"), http.StatusNotFound},
		{"bad gateway", BadGatewayError("down"), http.StatusBadGateway},
		{"internal", InternalServerError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.want {
				t.Errorf("Status code = %d, want %d", w.Code, tt.want)
			}
			var body errorPayload
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Error("Allow header not set")
	}
}
