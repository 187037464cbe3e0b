package mcptools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bohumlab/commission-gateway/common/logger"
	"github.com/bohumlab/commission-gateway/dataset"
	"github.com/bohumlab/commission-gateway/matcher"
	"github.com/bohumlab/commission-gateway/resolver"
	"github.com/bohumlab/commission-gateway/retriever"
)

const Version = "1.0.0"

// Deps are the gateway internals the tools operate on.
type Deps struct {
	Datasets      *dataset.Store
	Matcher       *matcher.Matcher
	Retriever     retriever.Retriever
	RetrievalTopK int
	AllowReload   bool
}

// NewServer builds an MCP server exposing the gateway's structured lookup
// and knowledge search as tools, so agent frontends can query commission
// data without going through the chat webhook.
func NewServer(serverName string, deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Insurance commission lookup and knowledge search tools for Korean insurance products"),
	)

	s.AddTool(
		mcp.NewToolWithRawSchema("commission-query", "Look up commission rates for a Korean insurance product, optionally scaled to a percentage tier", commissionQuerySchema()),
		handleCommissionQuery(deps),
	)
	s.AddTool(
		mcp.NewToolWithRawSchema("knowledge-search", "Semantic search over the insurance knowledge base", knowledgeSearchSchema()),
		handleKnowledgeSearch(deps),
	)
	if deps.AllowReload {
		s.AddTool(
			mcp.NewToolWithRawSchema("dataset-reload", "Reload the commission dataset from disk", datasetReloadSchema()),
			handleDatasetReload(deps),
		)
	}
	return s
}

// Run serves the tools over streamable HTTP until ctx is canceled.
func Run(ctx context.Context, addr string, deps Deps) error {
	httpSrv := server.NewStreamableHTTPServer(NewServer("commission-gateway", deps))
	go func() {
		<-ctx.Done()
		_ = httpSrv.Shutdown(context.Background())
	}()
	logger.Infof("mcp: listening on %s", addr)
	return httpSrv.Start(addr)
}

func commissionQuerySchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Natural-language product query, e.g. product name plus payment period"
			},
			"percentage": {
				"type": "number",
				"description": "Commission tier percentage (1-200). Defaults to the 60% base."
			}
		},
		"required": ["query"]
	}`)
}

func knowledgeSearchSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Natural-language search query"
			},
			"top_k": {
				"type": "integer",
				"description": "Maximum number of passages to return"
			}
		},
		"required": ["query"]
	}`)
}

func datasetReloadSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func handleCommissionQuery(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		percentage, _ := args["percentage"].(float64)

		ds := deps.Datasets.Current()
		parsed := matcher.ParseQuery(query, ds)
		if percentage > 0 {
			parsed.Percentage = percentage
		}
		res := deps.Matcher.Match(ds, parsed)
		if !res.Found() {
			return mcp.NewToolResultError(res.Reason), nil
		}
		resolved, err := resolver.Resolve(res.BestMatch.Company, res.BestMatch.Record, parsed.Percentage)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(resolver.FormatContext(res.BestMatch, resolved)), nil
	}
}

func handleKnowledgeSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Retriever == nil {
			return mcp.NewToolResultError("knowledge base is not configured"), nil
		}
		args := request.GetArguments()
		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		topK := deps.RetrievalTopK
		if v, ok := args["top_k"].(float64); ok && int(v) > 0 {
			topK = int(v)
		}
		results, err := deps.Retriever.Search(ctx, query, topK)
		if err != nil {
			logger.Warnf("mcp: knowledge search failed: %v", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func handleDatasetReload(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := deps.Datasets.Reload(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ds := deps.Datasets.Current()
		logger.Infof("mcp: dataset reloaded, %d companies", len(ds.CompanyNames()))
		return mcp.NewToolResultText("dataset reloaded"), nil
	}
}
