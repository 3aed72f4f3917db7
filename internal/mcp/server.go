package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/labsearch/internal/search"
	"github.com/Aman-CERP/labsearch/internal/store"
	"github.com/Aman-CERP/labsearch/pkg/version"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Searcher is the part of search.Service the tools use.
type Searcher interface {
	Search(ctx context.Context, text string, opts search.SearchOptions) (*store.Result, error)
	Find(ctx context.Context, id string) (*store.Hit, error)
	Stats() search.Stats
	Categories() []search.Category
}

// Server is the MCP server for labsearch.
type Server struct {
	mcp    *mcp.Server
	svc    Searcher
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Full-text search over the indexed documents. Supports a category boost or filter and paging. Hits carry a title, summary, container and link.",
	},
	{
		Name:        "index_status",
		Description: "Report whether the indexer is running or paused, how much work is queued, how many documents are searchable and the progress of crawl tasks.",
	},
}

// NewServer creates a new MCP server. A nil logger uses slog.Default.
func NewServer(svc Searcher, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("search service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{svc: svc, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "labsearch",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "labsearch", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := append([]ToolInfo(nil), tools...)
	out[0].Description = s.searchDescription()
	return out
}

// searchDescription is the search tool description with the category names
// the service knew when the server was built.
func (s *Server) searchDescription() string {
	names := s.categoryNames()
	if len(names) == 0 {
		return tools[0].Description
	}
	return tools[0].Description + " Categories: " + strings.Join(names, ", ") + "."
}

func (s *Server) categoryNames() []string {
	cats := s.svc.Categories()
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	return names
}

// searchInputSchema is the schema inferred from SearchInput with the
// category property limited to the registered names.
func (s *Server) searchInputSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, err
	}
	names := s.categoryNames()
	if prop, ok := schema.Properties["category"]; ok && len(names) > 0 {
		prop.Enum = make([]any, 0, len(names))
		for _, n := range names {
			prop.Enum = append(prop.Enum, n)
		}
	}
	return schema, nil
}

// CallTool invokes a tool by name. search returns markdown, index_status
// returns *IndexStatusOutput.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		return s.handleSearchTool(ctx, searchInputFromArgs(args))
	case "index_status":
		return ToIndexStatusOutput(s.svc.Stats()), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func searchInputFromArgs(args map[string]any) SearchInput {
	var in SearchInput
	if args == nil {
		return in
	}
	in.Query, _ = args["query"].(string)
	in.Category, _ = args["category"].(string)
	in.OnlyCategory, _ = args["only_category"].(bool)
	// JSON numbers arrive as float64.
	if v, ok := args["page"].(float64); ok {
		in.Page = int(v)
	}
	if v, ok := args["limit"].(float64); ok {
		in.Limit = int(v)
	}
	if v, ok := args["limit"].(int); ok {
		in.Limit = v
	}
	return in
}

func (s *Server) handleSearchTool(ctx context.Context, in SearchInput) (string, error) {
	in.Query = strings.TrimSpace(in.Query)
	res, err := s.search(ctx, in)
	if err != nil {
		return "", err
	}
	return FormatSearchResults(in.Query, res, in.Page), nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (*store.Result, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query parameter is required")
	}

	opts := search.SearchOptions{
		Category:        in.Category,
		LimitToCategory: in.OnlyCategory,
		Page:            in.Page,
		Limit:           clampLimit(in.Limit, defaultLimit, 1, maxLimit),
	}

	res, err := s.svc.Search(ctx, in.Query, opts)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("query", in.Query),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return res, nil
}

func (s *Server) registerTools() {
	searchTool := &mcp.Tool{
		Name:        tools[0].Name,
		Description: s.searchDescription(),
	}
	if schema, err := s.searchInputSchema(); err == nil {
		searchTool.InputSchema = schema
	} else {
		s.logger.Warn("mcp_search_schema_inferred", slog.String("error", err.Error()))
	}
	mcp.AddTool(s.mcp, searchTool, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	res, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Total:   res.Total,
		Results: make([]HitOutput, 0, len(res.Hits)),
	}
	for _, h := range filterValidHits(res) {
		output.Results = append(output.Results, ToHitOutput(h))
	}
	return nil, output, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	return nil, ToIndexStatusOutput(s.svc.Stats()), nil
}

// Serve runs the server on transport until ctx is cancelled. Only stdio is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_starting", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
