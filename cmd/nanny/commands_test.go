package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/nanny/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})
		ts.mu.Unlock()

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
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSendMessage(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"conversation_id":"conv-1","reply":"Offer fluids often.","metadata":{"strategy":"relevance"}}`,
	})

	reply, err := sendMessage(ctx, ts.client(), "", "my baby has a fever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.ConversationID != "conv-1" || reply.Reply != "Offer fluids often." || reply.Metadata.Strategy != "relevance" {
		t.Errorf("reply = %+v", reply)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/chat" {
		t.Errorf("request = %s %s, want POST /chat", r.Method, r.Path)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["message"] != "my baby has a fever" {
		t.Errorf("body.message = %q", body["message"])
	}
}

func TestChatLoop_KeepsConversation(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"conversation_id":"conv-7","reply":"Here is what can help."}`,
	})

	var out bytes.Buffer
	in := strings.NewReader("how long should she nap?\n\n  \nand at night?\n/exit\nnever sent\n")
	if err := chatLoop(ctx, ts.client(), "", in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	if len(ts.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ts.requests))
	}
	var first, second map[string]string
	json.Unmarshal([]byte(ts.requests[0].Body), &first)
	json.Unmarshal([]byte(ts.requests[1].Body), &second)
	if first["conversation_id"] != "" {
		t.Errorf("first conversation_id = %q, want empty", first["conversation_id"])
	}
	if second["conversation_id"] != "conv-7" {
		t.Errorf("second conversation_id = %q, want conv-7", second["conversation_id"])
	}
	if strings.Count(out.String(), "Here is what can help.") != 2 {
		t.Errorf("output = %q", out.String())
	}
}

func TestChatLoop_EOF(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	if err := chatLoop(ctx, ts.client(), "", strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("chatLoop on EOF: %v", err)
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no requests, got %d", len(ts.requests))
	}
}

func TestDocumentUpload(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "sleep-notes.md")
	if err := os.WriteFile(notes, []byte("Babies sleep a lot."), 0o644); err != nil {
		t.Fatal(err)
	}
	guide := filepath.Join(dir, "Guide.PDF")
	if err := os.WriteFile(guide, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                   string
		text, url, file, title string
		want                   map[string]string
	}{
		{
			name: "text", text: "Feed on demand.", title: "Feeding",
			want: map[string]string{"type": "text", "content": "Feed on demand.", "title": "Feeding"},
		},
		{
			name: "url", url: "https://example.org/sleep",
			want: map[string]string{"type": "url", "url": "https://example.org/sleep"},
		},
		{
			name: "text file", file: notes,
			want: map[string]string{"type": "text", "content": "Babies sleep a lot.", "title": "sleep-notes"},
		},
		{
			name: "pdf file", file: guide,
			want: map[string]string{
				"type":     "pdf",
				"content":  base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
				"filename": "Guide.PDF",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := documentUpload(tt.text, tt.url, tt.file, tt.title)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestDocumentUpload_Errors(t *testing.T) {
	if _, err := documentUpload("", "", "", "title"); err == nil {
		t.Error("expected error when no source is given")
	}
	if _, err := documentUpload("", "", filepath.Join(t.TempDir(), "missing.txt"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDocsAddCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"docs", "add"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error when no flags provided")
	}
	if !strings.Contains(err.Error(), "--text") {
		t.Errorf("error = %q, want it to mention --text", err.Error())
	}
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error without a question")
	}
}

func TestFetchDocuments(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /documents": `[{"id":"doc-1","title":"Fever","type":"text","status":"processed","length":120,"created_at":"2026-01-02T03:04:05Z"}]`,
	})

	docs, err := fetchDocuments(ctx, ts.client(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" || docs[0].Status != "processed" || docs[0].Length != 120 {
		t.Errorf("docs = %+v", docs)
	}
	if ts.requests[0].Path != "/documents?limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestServerStopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/conversations/missing")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	err = decodeJSON(resp, &struct{}{})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if err.Error() != "server returned 404: not found" {
		t.Errorf("error = %q", err.Error())
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	resp, err := (&apiClient{baseURL: srv.URL, httpClient: srv.Client()}).get(ctx, "/")
	if err != nil {
		t.Fatal(err)
	}
	err = decodeJSON(resp, nil)
	if err == nil || !strings.Contains(err.Error(), "502: bad gateway") {
		t.Errorf("error = %v", err)
	}
}

func TestDecodeJSON_NilTarget(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /documents/doc-1": `{"status":"deleted"}`,
	})
	resp, err := ts.client().delete(ctx, "/documents/doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := decodeJSON(resp, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestFormatMessage(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	if got := formatMessage(true, "hello"); got != "you   hello" {
		t.Errorf("user = %q", got)
	}
	if got := formatMessage(false, "line one\nline two"); got != "nanny line one\n      line two" {
		t.Errorf("assistant = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("bebê dormindo", 4); got != "bebê..." {
		t.Errorf("truncate runes = %q", got)
	}
}

func TestReadSecret(t *testing.T) {
	got, err := readSecret(strings.NewReader("  sk-test-123 \n"))
	if err != nil || got != "sk-test-123" {
		t.Errorf("readSecret = %q, %v", got, err)
	}
	if got, err := readSecret(strings.NewReader("sk-no-newline")); err != nil || got != "sk-no-newline" {
		t.Errorf("readSecret without newline = %q, %v", got, err)
	}
	if _, err := readSecret(strings.NewReader("\n")); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.LLM.APIKey = "sk-secret"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("%s leaks the API key", k.Key)
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestNewCompleter(t *testing.T) {
	if c := newCompleter(config.LLMConfig{}); c != nil {
		t.Errorf("newCompleter without key = %v, want nil", c)
	}
	if c := newCompleter(config.LLMConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}); c == nil {
		t.Error("newCompleter with key returned nil")
	}
}
