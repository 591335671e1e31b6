package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"docqa/internal/index"
)

// MCPSearcher abstracts semantic search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, query string, topK int, year *int) ([]index.SearchResult, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Answerer QuestionAnswerer
	Searcher MCPSearcher
	Index    IndexReader
}

// NewMCPServer creates an MCP server exposing document Q&A over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"docqa",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("docqa answers questions over a local PDF document corpus with source citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Ask a question over the indexed documents and get an answer with source citations."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("year", mcp.Description("Optional: restrict retrieval to documents from this year")),
		),
		mcpAskQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Semantically search the indexed documents and return the most relevant chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithNumber("year", mcp.Description("Optional: restrict results to documents from this year")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"docqa://stats",
			"Index Statistics",
			mcp.WithResourceDescription("Chunk and document counts plus the year range of the indexed corpus"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

// yearArg returns the year filter only when the argument is present, so an
// explicit 0 filters literally, same as the HTTP handler.
func yearArg(req mcp.CallToolRequest) *int {
	if _, ok := req.GetArguments()["year"]; !ok {
		return nil
	}
	y := req.GetInt("year", 0)
	return &y
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return mcpError("question is required"), nil
		}

		result, err := deps.Answerer.Answer(ctx, question, yearArg(req))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to answer: %v", err)), nil
		}

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		query = strings.TrimSpace(query)
		if query == "" {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		hits, err := deps.Searcher.Search(ctx, query, limit, yearArg(req))
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		type hitResult struct {
			Filename string  `json:"filename"`
			Year     int     `json:"year"`
			Content  string  `json:"content"`
			Score    float32 `json:"score"`
		}

		results := make([]hitResult, len(hits))
		for i, h := range hits {
			results[i] = hitResult{
				Filename: h.Filename,
				Year:     h.Year,
				Content:  h.Content,
				Score:    h.Score,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st := deps.Index.Stats()

		b, err := json.Marshal(map[string]any{
			"total_chunks":    st.ChunkCount,
			"total_documents": st.DocumentCount,
			"min_year":        st.MinYear,
			"max_year":        st.MaxYear,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
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
