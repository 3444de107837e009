package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/solenko/tutord/internal/composer"
	"github.com/solenko/tutord/internal/storage"
	"github.com/solenko/tutord/internal/tutor"
)

// MCPStore is the slice of storage the MCP surface needs.
type MCPStore interface {
	GetUserByUsername(username string) (storage.User, error)
	ListFlashcards(userID string) ([]storage.Flashcard, error)
	ListUsersWithLearningEntries() ([]storage.User, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Retriever Retriever
	Generator Generator
	Composer  *composer.Composer
	Store     MCPStore
	Tutor     *tutor.Service
	TopK      int
}

// NewMCPServer creates an MCP server exposing the document index and study
// state to local agents over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.TopK <= 0 {
		deps.TopK = 4
	}

	s := server.NewMCPServer(
		"tutord",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tutord — local study tutor over your indexed documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_documents",
			mcp.WithDescription("Answer a question using the indexed study documents."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("search_chunks",
			mcp.WithDescription("Semantically search the document index and return the raw matching chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchChunks(deps),
	)

	s.AddTool(
		mcp.NewTool("list_flashcards",
			mcp.WithDescription("List a user's generated flashcards."),
			mcp.WithString("username", mcp.Description("Account username"), mcp.Required()),
		),
		mcpListFlashcards(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tutor://progress",
			"Learning Progress",
			mcp.WithResourceDescription("Per-user topic progress from the learning log"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProgress(deps),
	)

	return s
}

func mcpAskDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		chunks, err := deps.Retriever.Retrieve(ctx, question, deps.TopK)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}

		answer, err := deps.Generator.Generate(ctx,
			composer.TutorAnswerSystem, deps.Composer.Answer(question, chunks), 800, 0.2)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpSearchChunks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID     int64  `json:"id"`
			Text   string `json:"text"`
			Source string `json:"source"`
			File   string `json:"file"`
		}
		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{ID: c.ID, Text: c.Text, Source: c.Source, File: c.Filename}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListFlashcards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}

		user, err := deps.Store.GetUserByUsername(username)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown user %q", username)), nil
		}

		cards, err := deps.Store.ListFlashcards(user.ID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list flashcards: %v", err)), nil
		}
		if cards == nil {
			cards = []storage.Flashcard{}
		}

		b, err := json.Marshal(cards)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal flashcards: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProgress(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		users, err := deps.Store.ListUsersWithLearningEntries()
		if err != nil {
			return nil, fmt.Errorf("listing active users: %w", err)
		}

		progress := make(map[string][]tutor.TopicProgress, len(users))
		for _, u := range users {
			summary, err := deps.Tutor.ProgressSummary(u.ID)
			if err != nil {
				return nil, fmt.Errorf("summarizing %s: %w", u.Username, err)
			}
			progress[u.Username] = summary
		}

		b, err := json.Marshal(progress)
		if err != nil {
			return nil, fmt.Errorf("marshaling progress: %w", err)
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
