package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteSendsHistoryAndAuth(t *testing.T) {
	var gotAuth string
	var gotReq completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Certainly."}},
			},
		})
	}))
	defer srv.Close()

	c := NewCompletionClient(srv.URL, "test-key", "intake-v1", 5*time.Second)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "You are a receptionist."},
		{Role: "user", Content: "What are your hours?"},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if reply != "Certainly." {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "intake-v1" || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestCompleteServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewCompletionClient(srv.URL, "", "intake-v1", 5*time.Second)
	if _, err := c.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestCompleteHardTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewCompletionClient(srv.URL, "", "intake-v1", 20*time.Millisecond)
	if _, err := c.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestKnowledgeSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req.Query != "parking" || req.TopK != 3 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(searchResponse{ //nolint:errcheck
			Results: []Snippet{{Title: "Parking", Content: "Lot B behind the building.", Score: 0.92}},
		})
	}))
	defer srv.Close()

	c := NewKnowledgeClient(srv.URL, "", 5*time.Second)
	snippets, err := c.Search(context.Background(), "parking", 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(snippets) != 1 || snippets[0].Title != "Parking" {
		t.Errorf("snippets = %+v", snippets)
	}
}
