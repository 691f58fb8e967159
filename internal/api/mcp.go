package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/nanny/internal/history"
	"github.com/kalambet/nanny/internal/ingest"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Chat          ChatService
	Conversations ConversationStore
	Documents     DocumentStore
	Version       string
}

// NewMCPServer creates an MCP server with the nanny tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"nanny",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("nanny answers caregiver questions about babies and young children from the uploaded reference material."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the caregiver assistant a question. Continues a conversation when conversation_id is given."),
			mcp.WithString("message", mcp.Description("The question or message"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Existing conversation to continue")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Upload reference material. Text is processed in the background; URLs are fetched."),
			mcp.WithString("title", mcp.Description("Document title")),
			mcp.WithString("type", mcp.Description("text (default) or url"), mcp.Enum("text", "url")),
			mcp.WithString("content", mcp.Description("Text content, for type text")),
			mcp.WithString("url", mcp.Description("Page to fetch, for type url")),
		),
		mcpAddDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List stored conversations, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of conversations (default 10)")),
		),
		mcpListConversations(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"nanny://conversations",
			"Conversations",
			mcp.WithResourceDescription("Stored conversations (titles and last message) as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceConversations(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		ex, err := deps.Chat.Send(ctx, req.GetString("conversation_id", ""), message)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("%s\n\n(conversation %s)", ex.Reply.Content, ex.Conversation.ID)), nil
	}
}

func mcpAddDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := documentFromRequest(DocumentRequest{
			Type:    req.GetString("type", "text"),
			Title:   req.GetString("title", ""),
			Content: req.GetString("content", ""),
			URL:     req.GetString("url", ""),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		doc, err = ingest.Submit(ctx, deps.Documents, doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to store document: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored document %s (%s)", doc.ID, doc.Status)), nil
	}
}

type conversationSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Messages    int    `json:"messages"`
	LastMessage string `json:"last_message,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

func summarize(convs []history.Conversation, limit int) []conversationSummary {
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	out := make([]conversationSummary, len(convs))
	for i, c := range convs {
		var last string
		if n := len(c.Messages); n > 0 {
			last = c.Messages[n-1].Content
			if utf8.RuneCountInString(last) > 200 {
				last = string([]rune(last)[:200]) + "..."
			}
		}
		out[i] = conversationSummary{
			ID:          c.ID,
			Title:       c.Title,
			Messages:    len(c.Messages),
			LastMessage: last,
			UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
		}
	}
	return out
}

func mcpListConversations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		b, err := json.Marshal(summarize(deps.Conversations.List(ctx), limit))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal conversations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceConversations(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(summarize(deps.Conversations.List(ctx), 0))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal conversations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
