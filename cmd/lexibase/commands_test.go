package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		language:   "spanish",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAddCommand_Request(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /words": `{"id":7,"status":"queued"}`,
	})

	client := ts.client()
	req := map[string]any{
		"text":     "perro",
		"language": "spanish",
		"topic":    "animals",
	}

	resp, err := client.post(ctx, "/words", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.ID != 7 || result.Status != "queued" {
		t.Errorf("result = %+v, want id 7 queued", result)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["text"] != "perro" {
		t.Errorf("body.text = %v, want perro", body["text"])
	}
	if body["topic"] != "animals" {
		t.Errorf("body.topic = %v, want animals", body["topic"])
	}
}

func TestAddCommand_MissingWord(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"add"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing word argument")
	}
}

func TestResolveLanguage(t *testing.T) {
	c := &apiClient{language: "spanish"}

	if got, err := c.resolveLanguage("japanese"); err != nil || got != "japanese" {
		t.Errorf("flag set: got %q err %v, want japanese", got, err)
	}
	if got, err := c.resolveLanguage(""); err != nil || got != "spanish" {
		t.Errorf("config fallback: got %q err %v, want spanish", got, err)
	}

	c.language = ""
	if _, err := c.resolveLanguage(""); err == nil {
		t.Error("expected error with no language anywhere")
	}
}

func TestStudyBatchResponse(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /study/batch": `[{"ID":3,"Text":"perro","Translation":"dog","Strength":2,"NextDueAt":"2025-01-01T00:00:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/study/batch?language=spanish&limit=10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var words []wordRow
	if err := decodeJSON(resp, &words); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	if words[0].Text != "perro" || words[0].Strength != 2 {
		t.Errorf("word = %+v", words[0])
	}
}

func TestReviewCommand_ErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	resp, err := client.post(ctx, "/study/reviews", map[string]any{"word_id": 99, "rating": "good"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var out any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to mention 404", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	if _, err := client.get(ctx, "/health"); err == nil {
		t.Fatal("expected error for stopped server")
	} else if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
