// Package mcpserver exposes the query gateway as MCP tools.
//
// Two tools are served: list_models returns the catalog and query_models
// fans a prompt out to several models and returns every outcome in request
// order, both as a text table and as structured content. The HTTP handler
// runs in stateless mode and binds the caller identity set by the auth
// middleware to the tools, so entitlement and session ownership apply to
// MCP clients exactly as they do to the REST API.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/auth"
	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/transport"
)

// Server builds MCP servers backed by a query handler and catalog.
type Server struct {
	handler transport.QueryHandler
	catalog *registry.Registry
	impl    *mcp.Implementation
}

// New creates a Server. version is reported to MCP clients.
func New(handler transport.QueryHandler, catalog *registry.Registry, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		handler: handler,
		catalog: catalog,
		impl:    &mcp.Implementation{Name: "chorus", Version: version},
	}
}

// Handler returns a streamable HTTP handler. Each request gets a server
// bound to the identity in its context.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.NewMCPServer(auth.IdentityFromContext(r.Context()))
	}, &mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true})
}

// ListModelsInput filters the catalog listing.
type ListModelsInput struct {
	FreeOnly bool `json:"free_only,omitempty" jsonschema:"only list free-tier models"`
}

// ListModelsOutput is the structured result of list_models.
type ListModelsOutput struct {
	Models []registry.ModelDescriptor `json:"models"`
}

// QueryInput is the argument object of query_models.
type QueryInput struct {
	Prompt    string   `json:"prompt" jsonschema:"the prompt sent unchanged to every model"`
	ModelIDs  []string `json:"model_ids" jsonschema:"catalog ids of the models to query, in display order"`
	TimeoutMs int      `json:"timeout_ms,omitempty" jsonschema:"deadline for the whole fan-out in milliseconds"`
	SessionID string   `json:"session_id,omitempty" jsonschema:"append the exchange to this session"`
	Persist   *bool    `json:"persist,omitempty" jsonschema:"store the exchange in the transcript (default true)"`
}

// QueryOutput is the structured result of query_models.
type QueryOutput struct {
	RequestID   string             `json:"requestId"`
	ElapsedMs   int64              `json:"elapsedMs"`
	Results     []api.ModelOutcome `json:"results"`
	Persistence *api.Persistence   `json:"persistence,omitempty"`
}

// NewMCPServer returns an MCP server whose tools act as id. A nil id
// means authentication is disabled.
func (s *Server) NewMCPServer(id *auth.Identity) *mcp.Server {
	server := mcp.NewServer(s.impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "Lists the models that can be queried, in catalog order",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in ListModelsInput) (*mcp.CallToolResult, ListModelsOutput, error) {
		models := s.catalog.List()
		if in.FreeOnly {
			models = s.catalog.ListFree()
		}
		if models == nil {
			models = []registry.ModelDescriptor{}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatModels(models)}},
		}, ListModelsOutput{Models: models}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_models",
		Description: "Sends one prompt to several models concurrently and returns every answer or failure in request order",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		ctx = auth.WithCaller(ctx, id)

		if apiErr := auth.CheckModels(ctx, s.catalog, in.ModelIDs); apiErr != nil {
			return nil, QueryOutput{}, apiErr
		}

		resp, err := s.handler.Send(ctx, &api.QueryRequest{
			Prompt:    in.Prompt,
			ModelIDs:  in.ModelIDs,
			TimeoutMs: in.TimeoutMs,
			SessionID: in.SessionID,
			Persist:   in.Persist,
		})
		if err != nil {
			return nil, QueryOutput{}, transport.AsAPIError(err)
		}

		out := QueryOutput{
			RequestID:   resp.RequestID,
			ElapsedMs:   resp.ElapsedMs,
			Results:     resp.Results,
			Persistence: resp.Persistence,
		}
		if out.Results == nil {
			out.Results = []api.ModelOutcome{}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: formatOutcomes(resp)}},
		}, out, nil
	})

	return server
}

func formatModels(models []registry.ModelDescriptor) string {
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("ID", "PROVIDER", "FREE", "LABEL")
	for _, m := range models {
		table.AddRow(m.ID, m.Provider, m.IsFree, m.Label)
	}
	return table.String() + "\n"
}

// formatOutcomes renders a summary table followed by each model's answer
// or failure detail.
func formatOutcomes(resp *api.QueryResponse) string {
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("MODEL", "STATUS", "LATENCY")
	for _, o := range resp.Results {
		status := string(o.Status)
		if !o.OK() {
			status = string(o.Kind())
		}
		table.AddRow(o.ModelID, status, fmt.Sprintf("%dms", o.LatencyMs))
	}

	var b strings.Builder
	b.WriteString(table.String())
	fmt.Fprintf(&b, "\n\n%d of %d succeeded in %dms\n", resp.Succeeded(), len(resp.Results), resp.ElapsedMs)

	for _, o := range resp.Results {
		fmt.Fprintf(&b, "\n## %s\n", o.ModelID)
		if o.OK() {
			b.WriteString(o.Content)
		} else {
			fmt.Fprintf(&b, "[%s] %s", o.Kind(), o.ErrorDetail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
