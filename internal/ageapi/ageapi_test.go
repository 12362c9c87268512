package ageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/age-gate/internal/assurance"
	"github.com/example/age-gate/internal/logging"
)

func TestHTTPClientPredictSendsPayload(t *testing.T) {
	var received map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"age":{"age":24.5,"st_dev":1.2},"antispoofing":{"prediction":"real"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "api-token", time.Second, zap.NewNop())
	prediction, err := client.Predict(context.Background(), PredictRequest{Image: "data:image/jpeg;base64,AA==", Secure: true, LevelOfAssurance: assurance.High})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	years, err := prediction.Years()
	if err != nil || years != 24.5 {
		t.Fatalf("expected age 24.5, got %v (%v)", years, err)
	}
	if received["secure"] != true {
		t.Fatalf("expected secure=true, got %v", received["secure"])
	}
	if received["level_of_assurance"] != "high" {
		t.Fatalf("unexpected level_of_assurance: %v", received["level_of_assurance"])
	}
	if auth != "Bearer api-token" {
		t.Fatalf("unexpected authorization header: %q", auth)
	}
	if len(prediction.Raw) == 0 {
		t.Fatal("expected raw body to be kept")
	}
}

func TestHTTPClientOmitsEmptyLevel(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"age":{"age":30}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", time.Second, zap.NewNop())
	if _, err := client.Predict(context.Background(), PredictRequest{Image: "img"}); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if _, ok := received["level_of_assurance"]; ok {
		t.Fatalf("expected level_of_assurance to be absent, got %v", received)
	}
	if received["secure"] != false {
		t.Fatalf("expected secure=false, got %v", received["secure"])
	}
}

func TestHTTPClientReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", time.Second, zap.NewNop())
	_, err := client.Predict(context.Background(), PredictRequest{Image: "img"})

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if got, want := Describe(err), "{\n  \"code\": \"invalid\"\n}"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestHTTPClientWrapsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewHTTPClient(url, "", time.Second, zap.NewNop())
	_, err := client.Predict(context.Background(), PredictRequest{Image: "img"})

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "ageapi.predict" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestHTTPClientRejectsResponseWithoutAge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"antispoofing":{}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", time.Second, zap.NewNop())
	if _, err := client.Predict(context.Background(), PredictRequest{Image: "img"}); !errors.Is(err, ErrMissingAge) {
		t.Fatalf("expected ErrMissingAge, got %v", err)
	}
}

func TestErrorDetail(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "object", body: `{"code":"invalid"}`, want: "{\n  \"code\": \"invalid\"\n}"},
		{name: "array", body: `["a"]`, want: "[\n  \"a\"\n]"},
		{name: "plain text", body: "bad request", want: "bad request"},
		{name: "json string", body: `"bad request"`, want: "bad request"},
		{name: "json null", body: "null", want: "null"},
		{
			name: "unicode and html escapes",
			body: `{"message":"caf\u00e9 \u003cb\u003e","tags":["\u00fc"]}`,
			want: "{\n  \"message\": \"café <b>\",\n  \"tags\": [\n    \"ü\"\n  ]\n}",
		},
		{
			name: "key order and empty containers",
			body: `{"z":1.5,"a":{"nested":true,"none":null},"e":{},"l":[]}`,
			want: "{\n  \"z\": 1.5,\n  \"a\": {\n    \"nested\": true,\n    \"none\": null\n  },\n  \"e\": {},\n  \"l\": []\n}",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &Error{StatusCode: http.StatusBadRequest, Body: []byte(tc.body)}
			if got := err.Detail(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDescribeFallsBackToErrorText(t *testing.T) {
	if got := Describe(errors.New("connection refused")); got != "connection refused" {
		t.Fatalf("unexpected description: %q", got)
	}
}
