package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aurorahq/aurora/internal/logger"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, logger.NewNop()); err == nil {
		t.Error("missing API key should be rejected")
	}
	if _, err := New(Config{APIKey: "   "}, logger.NewNop()); err == nil {
		t.Error("blank API key should be rejected")
	}
}

func TestNewDefaults(t *testing.T) {
	e, err := New(Config{APIKey: "k"}, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if e.cfg.Model != "text-embedding-3-small" {
		t.Errorf("default model %q", e.cfg.Model)
	}
	if e.Dimensions() != 768 {
		t.Errorf("default dimensions %d, want 768", e.Dimensions())
	}
}

func TestEmbedRequestShape(t *testing.T) {
	var gotAuth string
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	e, err := New(Config{BaseURL: srv.URL, APIKey: "secret-key", Model: "test-model", Dimensions: 3}, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	vec, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("unexpected vector %v", vec)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("authorization header %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.Input != "some text" || gotReq.Dimensions != 3 {
		t.Errorf("unexpected request %+v", gotReq)
	}
}

func TestEmbedNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("non-200 response should fail")
	}
}

func TestEmbedRejectsWrongDimensionality(t *testing.T) {
	// Backend ignores the requested dimensions and returns a longer vector.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3, 0.4, 0.5}}},
		})
	}))
	defer srv.Close()

	e, err := New(Config{BaseURL: srv.URL, APIKey: "k", Dimensions: 3}, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("mismatched vector length should fail")
	}
}

func TestEmbedEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, logger.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("response without a vector should fail")
	}
}
