package mcp

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/labsearch/internal/search"
)

const (
	statusURI      = "labsearch://status"
	documentPrefix = "labsearch://document/"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         statusURI,
			Description: "Indexer state, queue depth and crawl task progress",
			MIMEType:    "text/markdown",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStatus(), nil
		},
	)

	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "document",
			URITemplate: documentPrefix + "{id}",
			Description: "One indexed document by its escaped identifier",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readDocument(ctx, req.Params.URI)
		},
	)
}

func (s *Server) readStatus() *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      statusURI,
				MIMEType: "text/markdown",
				Text:     FormatIndexStatus(s.svc.Stats()),
			},
		},
	}
}

// DocumentURI returns the resource URI for a document identifier.
func DocumentURI(id string) string {
	return documentPrefix + url.PathEscape(id)
}

func (s *Server) readDocument(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	escaped, ok := strings.CutPrefix(uri, documentPrefix)
	if !ok || escaped == "" {
		return nil, NewInvalidParamsError("invalid document uri: " + uri)
	}
	id, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, NewInvalidParamsError("invalid document uri: " + uri)
	}

	hit, err := s.svc.Find(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}

	content, err := json.MarshalIndent(ToHitOutput(hit), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

var _ Searcher = (*search.Service)(nil)
