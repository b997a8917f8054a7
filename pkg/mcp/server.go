package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcp_golang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"
	"github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"
)

const (
	// ServerName is announced to MCP clients
	ServerName = "observable-agent"
	// HTTPPath is where the HTTP transport listens
	HTTPPath = "/mcp"
)

// Register adds every tool to server. Tool calls run under ctx.
func Register(ctx context.Context, server *mcp_golang.Server, tools *Tools) error {
	registrations := []struct {
		name        string
		description string
		handler     interface{}
	}{
		{"route_request", "Route a support request to billing, tech or sales", func(args RouteArgs) (*mcp_golang.ToolResponse, error) {
			return respond(tools.RouteRequest(ctx, args))
		}},
		{"triage_ticket", "Neutrally triage a support ticket to billing, tech or sales", func(args TriageArgs) (*mcp_golang.ToolResponse, error) {
			return respond(tools.TriageTicket(ctx, args))
		}},
		{"video_ideas", "Generate video ideas for a bundled creator snapshot", func(args IdeasArgs) (*mcp_golang.ToolResponse, error) {
			return respond(tools.VideoIdeas(ctx, args))
		}},
		{"validate_filename", "Check a filename against allowed glob patterns", func(args ValidateFilenameArgs) (*mcp_golang.ToolResponse, error) {
			return respond(tools.ValidateFilename(ctx, args))
		}},
	}

	for _, r := range registrations {
		if err := server.RegisterTool(r.name, r.description, r.handler); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", r.name, err)
		}
	}
	return nil
}

// Serve runs the tool server over stdio, or over HTTP when httpAddr is set,
// until ctx is cancelled
func Serve(ctx context.Context, tools *Tools, httpAddr string) error {
	var t transport.Transport
	if httpAddr != "" {
		t = http.NewHTTPTransport(HTTPPath).WithAddr(httpAddr)
	} else {
		t = stdio.NewStdioServerTransport()
	}

	server := mcp_golang.NewServer(t,
		mcp_golang.WithName(ServerName),
		mcp_golang.WithInstructions("Routing, triage and creator video idea tools"),
		mcp_golang.WithVersion("0.2.0"),
	)
	if err := Register(ctx, server, tools); err != nil {
		return err
	}

	tools.logger().Info(ctx, "Starting MCP server", map[string]interface{}{"http_addr": httpAddr})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve MCP: %w", err)
		}
		// stdio serving returns immediately and keeps reading in the background
		<-ctx.Done()
	case <-ctx.Done():
	}
	if err := t.Close(); err != nil {
		tools.logger().Debug(ctx, "Failed to close MCP transport", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func respond(v interface{}, err error) (*mcp_golang.ToolResponse, error) {
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp_golang.NewToolResponse(mcp_golang.NewTextContent(string(data))), nil
}
