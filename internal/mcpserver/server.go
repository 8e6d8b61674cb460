// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes sixthdegree search tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sixthdegree/internal/apperr"
	"github.com/starford/sixthdegree/internal/search"
)

// Resource URIs.
const (
	GraphURI       = "sixthdegree://graph"
	SearchGuideURI = "sixthdegree://search-guide"
)

// Server wraps the MCP server with sixthdegree tools.
type Server struct {
	mcp *server.MCPServer
	svc *search.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *search.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Sixthdegree",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("find_shortest_path",
		mcp.WithDescription("Find the shortest directed connection path between two persons, by exact name. "+
			"Read the search guide (get_search_guide or "+SearchGuideURI+") to interpret the result."),
		mcp.WithString("start", mcp.Required(), mcp.Description("Name of the person the path starts at")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Name of the person the path ends at")),
	), s.findShortestPath)

	s.mcp.AddTool(mcp.NewTool("list_persons",
		mcp.WithDescription("List every person available for search, ordered by name."),
	), s.listPersons)

	s.mcp.AddTool(mcp.NewTool("graph_stats",
		mcp.WithDescription("Person and connection counts, average connections per person, and whether the graph cache is loaded."),
	), s.graphStats)

	s.mcp.AddTool(mcp.NewTool("reload_graph",
		mcp.WithDescription("Rebuild the cached graph from the store so recent writes become searchable."),
	), s.reloadGraph)

	s.mcp.AddTool(mcp.NewTool("get_search_guide",
		mcp.WithDescription("Returns the guide to reading find_shortest_path results."),
	), s.getSearchGuide)

	s.mcp.AddResource(
		mcp.NewResource(GraphURI, "Relationship Graph",
			mcp.WithResourceDescription("Node and edge export of the cached relationship graph."),
			mcp.WithMIMEType("application/json"),
		),
		s.readGraphResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(SearchGuideURI, "Search Guide",
			mcp.WithResourceDescription("How shortest-path results are computed and reported."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSearchGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) findShortestPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Search(ctx, start, end)
	if err != nil {
		var pnf *apperr.PersonNotFoundError
		if errors.As(err, &pnf) {
			return mcp.NewToolResultError(fmt.Sprintf("person not found: %s", pnf.Name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listPersons(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	persons, err := s.svc.ListAllPersons(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(persons)
}

func (s *Server) graphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.GraphStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) reloadGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.svc.Reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum)
}

func (s *Server) getSearchGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SearchGuide), nil
}

func (s *Server) readGraphResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := s.svc.GraphData(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GraphURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) readSearchGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SearchGuideURI,
			MIMEType: "text/markdown",
			Text:     SearchGuide,
		},
	}, nil
}
