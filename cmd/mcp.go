package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"filedex/internal/embedder"
	"filedex/internal/search"
	"filedex/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing file search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'filedex index <directory>' first to build the index", cfg.DBPath)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	eng := search.NewEngine(st, embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel), nil, cfg)

	s := mcpserver.NewMCPServer("filedex", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchFilesTool(), makeSearchFilesHandler(eng))
	s.AddTool(getFileDetailsTool(), makeFileDetailsHandler(eng))
	s.AddTool(getStatisticsTool(), makeStatisticsHandler(eng))
	s.AddTool(getSuggestionsTool(), makeSuggestionsHandler(eng))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchFilesTool() mcp.Tool {
	return mcp.NewTool("search_files",
		mcp.WithDescription("Search indexed files with hybrid keyword + semantic ranking. Supports operators: type:<category>, label:<label>, tag:<tag>, has:ocr, has:vision."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query, optionally with filter operators"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of files to return (default 10)"),
		),
	)
}

func getFileDetailsTool() mcp.Tool {
	return mcp.NewTool("get_file_details",
		mcp.WithDescription("Get the full indexed record for a file: category, AI label, caption, tags, and extracted text."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute file path as indexed"),
		),
	)
}

func getStatisticsTool() mcp.Tool {
	return mcp.NewTool("get_index_statistics",
		mcp.WithDescription("Get aggregate index statistics: file counts, total size, and per-category breakdown."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func getSuggestionsTool() mcp.Tool {
	return mcp.NewTool("get_search_suggestions",
		mcp.WithDescription("Get recent search queries matching a partial input, most recent first."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("partial",
			mcp.Required(),
			mcp.Description("Partial query text to complete"),
		),
	)
}

// --- Handler factories ---

func makeSearchFilesHandler(eng *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		results := eng.Search(ctx, query, limit)
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeFileDetailsHandler(eng *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		r := eng.FileDetails(path)
		if r == nil {
			return mcp.NewToolResultError(fmt.Sprintf("file %q not found in index", path)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n\n", r.Name)
		fmt.Fprintf(&sb, "**Path:** %s  \n**Category:** %s  \n**Size:** %s  \n**Modified:** %s\n\n",
			r.Path, r.Category, r.SizeFormatted, r.Modified)
		if r.Label != "" {
			fmt.Fprintf(&sb, "**Label:** %s  \n", r.Label)
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&sb, "**Tags:** %s  \n", strings.Join(r.Tags, ", "))
		}
		if len(r.UserTags) > 0 {
			fmt.Fprintf(&sb, "**User tags:** %s  \n", strings.Join(r.UserTags, ", "))
		}
		if r.Caption != "" {
			fmt.Fprintf(&sb, "\n%s\n", r.Caption)
		}
		if r.OCRText != "" {
			fmt.Fprintf(&sb, "\n**Extracted text:**\n\n%s\n", r.OCRText)
		}
		if !r.Exists {
			sb.WriteString("\n(The file no longer exists on disk.)\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeStatisticsHandler(eng *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats := eng.Statistics()

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Index statistics\n\n")
		fmt.Fprintf(&sb, "- Files: %d\n- With OCR text: %d\n- Total size: %s\n",
			stats.TotalFiles, stats.FilesWithOCR, search.FormatSize(stats.TotalSize))
		if len(stats.Categories) > 0 {
			sb.WriteString("\n### By category\n\n")
			for cat, n := range stats.Categories {
				fmt.Fprintf(&sb, "- %s: %d\n", cat, n)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeSuggestionsHandler(eng *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partial := req.GetString("partial", "")
		suggestions := eng.Suggestions(partial, 10)
		if len(suggestions) == 0 {
			return mcp.NewToolResultText("No matching recent searches."), nil
		}
		return mcp.NewToolResultText("- " + strings.Join(suggestions, "\n- ")), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d files)\n\n", query, len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, r.Name)
		fmt.Fprintf(&sb, "**Path:** %s  \n**Category:** %s  \n**Relevance:** %.0f%%  \n**Size:** %s\n\n",
			r.Path, r.Category, r.Relevance*100, r.SizeFormatted)
		if r.Label != "" {
			fmt.Fprintf(&sb, "**Label:** %s  \n", r.Label)
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&sb, "**Tags:** %s  \n", strings.Join(r.Tags, ", "))
		}
		if r.OCRPreview != "" {
			fmt.Fprintf(&sb, "**Text:** %s  \n", r.OCRPreview)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
