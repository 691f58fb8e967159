package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/nanny/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *testEnv) {
	t.Helper()
	e := newTestEnv(t)
	return MCPDeps{
		Chat:          e.deps.Chat,
		Conversations: e.deps.Conversations,
		Documents:     e.deps.Documents,
		Version:       "test",
	}, e
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_Ask(t *testing.T) {
	deps, e := newTestMCPDeps(t)
	handler := mcpAsk(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]any{
		"message": "My baby has a fever, what should I do?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	convs := e.conversations.List(context.Background())
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	if !strings.Contains(toolText(t, result), convs[0].ID) {
		t.Errorf("reply does not mention conversation ID: %s", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("ask", map[string]any{
		"message":         "Thank you",
		"conversation_id": convs[0].ID,
	}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got, _ := e.conversations.Get(context.Background(), convs[0].ID); len(got.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(got.Messages))
	}
}

func TestMCPTool_Ask_MissingMessage(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, err := mcpAsk(deps)(context.Background(), makeCallToolRequest("ask", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing message")
	}
}

func TestMCPTool_AddDocument(t *testing.T) {
	deps, e := newTestMCPDeps(t)

	result, err := mcpAddDocument(deps)(context.Background(), makeCallToolRequest("add_document", map[string]any{
		"title":   "Colic",
		"content": "Colic usually improves by three to four months of age.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	docs, err := e.store.ListDocuments(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("listing docs: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Colic" || docs[0].Status != storage.DocumentUploading {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestMCPTool_AddDocument_Invalid(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpAddDocument(deps)(context.Background(), makeCallToolRequest("add_document", map[string]any{
		"type": "url",
		"url":  "not a url",
	}))
	if !result.IsError {
		t.Fatal("expected tool error for invalid url")
	}
}

func TestMCPTool_ListConversations(t *testing.T) {
	deps, e := newTestMCPDeps(t)
	for _, msg := range []string{"first question about sleep", "second question about feeding", "third question about fever"} {
		if _, err := e.deps.Chat.Send(context.Background(), "", msg); err != nil {
			t.Fatal(err)
		}
	}

	result, err := mcpListConversations(deps)(context.Background(), makeCallToolRequest("list_conversations", map[string]any{
		"limit": float64(2),
	}))
	if err != nil || result.IsError {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []conversationSummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].Messages != 2 || got[0].LastMessage == "" {
		t.Errorf("summary = %+v", got[0])
	}
}

func TestMCPResource_Conversations(t *testing.T) {
	deps, e := newTestMCPDeps(t)
	if _, err := e.deps.Chat.Send(context.Background(), "", "Is colic normal?"); err != nil {
		t.Fatal(err)
	}

	contents, err := mcpResourceConversations(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "nanny://conversations"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var got []conversationSummary
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatalf("failed to parse resource: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Is colic normal?" {
		t.Errorf("resource = %+v", got)
	}
}
