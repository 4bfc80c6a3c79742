package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(url, 5*time.Second, zap.NewNop())
}

func TestClient_Classify_Verdicts(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantSpam bool
	}{
		{"boolean true", `{"response": true}`, true},
		{"string true", `{"response": "true"}`, true},
		{"boolean false", `{"response": false}`, false},
		{"string false", `{"response": "false"}`, false},
		{"unrelated string", `{"response": "maybe"}`, false},
		{"extra fields", `{"response": true, "score": 0.97}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST, got %s", r.Method)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json; charset=UTF-8" {
					t.Errorf("Unexpected content type %q", ct)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			spam, err := newTestClient(server.URL).Classify(context.Background(), "some long message")
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if spam != tt.wantSpam {
				t.Errorf("Classify() = %v, expected %v", spam, tt.wantSpam)
			}
		})
	}
}

func TestClient_Classify_SendsMessagePayload(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := jsonDecode(r, &req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		got = req.Message
		w.Write([]byte(`{"response": false}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Classify(context.Background(), "check this text"); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got != "check this text" {
		t.Errorf("Classifier received %q", got)
	}
}

func TestClient_Classify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"response":`))
		}},
		{"missing response field", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"verdict": true}`))
		}},
		{"null response field", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"response": null}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			spam, err := newTestClient(server.URL).Classify(context.Background(), "text")
			var cerr *ClassifierError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ClassifierError, got %v", err)
			}
			if spam {
				t.Error("Failed classification must not report spam")
			}
		})
	}
}

func TestClient_Classify_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"response": true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond, zap.NewNop())
	spam, err := client.Classify(context.Background(), "text")
	var cerr *ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ClassifierError on timeout, got %v", err)
	}
	if spam {
		t.Error("Timed-out classification must not report spam")
	}
}

func TestClient_Classify_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond, zap.NewNop())

	_, err := client.Classify(context.Background(), "text")
	var cerr *ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ClassifierError for unreachable endpoint, got %v", err)
	}
}

func jsonDecode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
