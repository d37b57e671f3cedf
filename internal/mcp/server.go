package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/oscillatelabsllc/argoquery/internal/assistant"
	"github.com/oscillatelabsllc/argoquery/internal/catalog"
	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
	"github.com/oscillatelabsllc/argoquery/internal/predict"
)

// Predictor runs auxiliary model server predictions
type Predictor interface {
	Predict(ctx context.Context, model predict.ModelType, features map[string]float64) (predict.Prediction, error)
}

// Server implements the MCP server for argoquery
type Server struct {
	catalog   *catalog.Service
	assistant *assistant.Assistant
	predictor Predictor
	extractor *intent.Extractor
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server. predictor may be nil.
func NewServer(cat *catalog.Service, asst *assistant.Assistant, predictor Predictor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:   cat,
		assistant: asst,
		predictor: predictor,
		extractor: intent.NewExtractor(),
		logger:    logger,
	}

	s.mcpServer = server.NewMCPServer(
		"ARGO Ocean Data",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "ask_argo",
		Description: "Ask a question about ARGO float profiles in plain language. Returns a narrative answer with suggested follow-up actions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"message": stringProp("The question, e.g. 'How many profiles in the Arabian Sea in 2023?'"),
				"mode": map[string]any{
					"type":        "string",
					"enum":        []string{string(models.ModeConversation), string(models.ModeExplorer)},
					"description": "explorer adds an export action and routes open-ended questions to semantic search (default: conversation)",
				},
			},
			Required: []string{"message"},
		},
	}, s.handleAsk)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "query_profiles",
		Description: "Translate a question into structured filters and run them against the profile store. Returns the extracted filters, the store query and the rows or statistics.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": stringProp("Plain-language description of the profiles wanted"),
				"limit": intProp("Maximum rows to return (default: 50, max: 1000)"),
			},
			Required: []string{"query"},
		},
	}, s.handleQuery)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "retrieve_profiles",
		Description: "Rank profiles by semantic similarity to a free-text description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": stringProp("Free-text description, e.g. 'warm salty monsoon water'"),
				"k":     intProp("Number of results (default: 10)"),
			},
			Required: []string{"query"},
		},
	}, s.handleRetrieve)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "add_profiles",
		Description: "Store ARGO profiles and index them for semantic search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"profiles": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "object"},
					"description": "Profiles with collected_at, latitude, longitude and summary measurements",
				},
			},
			Required: []string{"profiles"},
		},
	}, s.handleAddProfiles)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_profile",
		Description: "Fetch one stored profile by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": stringProp("Profile id"),
			},
			Required: []string{"id"},
		},
	}, s.handleGetProfile)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_stats",
		Description: "Profile counts, time span, bounding box and index status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
			Required:   []string{},
		},
	}, s.handleGetStats)

	modelNames := make([]string, 0, len(predict.ModelTypes))
	for _, m := range predict.ModelTypes {
		modelNames = append(modelNames, string(m))
	}
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "predict",
		Description: "Run a model server prediction for a stored profile or a raw feature record",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"model":      map[string]any{"type": "string", "enum": modelNames, "description": "Model to run"},
				"profile_id": stringProp("Stored profile to derive features from. Optional."),
				"features": map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "number"},
					"description":          "Raw feature record, used when profile_id is omitted",
				},
			},
			Required: []string{"model"},
		},
	}, s.handlePredict)
}

// parseParams converts MCP request arguments to a struct
func parseParams(args any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params models.ChatRequest
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	reply := s.assistant.Chat(ctx, params)
	if reply.Err != nil {
		s.logger.Warn("ask_argo fell back", zap.String("request_id", reply.RequestID), zap.Error(reply.Err))
	}
	return jsonResult(reply.Response)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if params.Query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	q := s.extractor.Extract(params.Query)
	if params.Limit > 0 {
		q.Limit = min(params.Limit, intent.MaxLimit)
	}

	sq, res, err := s.catalog.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"intent":      q,
		"store_query": sq.Describe(),
		"result":      res,
	})
}

func (s *Server) handleRetrieve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if params.K <= 0 {
		params.K = 10
	}

	hits, err := s.catalog.Retrieve(ctx, params.Query, params.K)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}
	return jsonResult(hits)
}

func (s *Server) handleAddProfiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Profiles []models.Profile `json:"profiles"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	// Ingest outlives a client disconnect; store and index must finish together
	ingestCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	ids, err := s.catalog.Ingest(ingestCtx, params.Profiles)
	if err != nil {
		if len(ids) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("failed to store profiles: %v", err)), nil
		}
		s.logger.Warn("profiles stored without index entries", zap.Int("count", len(ids)), zap.Error(err))
	}

	return jsonResult(map[string]any{
		"success": true,
		"ids":     ids,
		"message": fmt.Sprintf("Stored %d profiles", len(ids)),
	})
}

func (s *Server) handleGetProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		ID string `json:"id"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	p, err := s.catalog.Get(ctx, params.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get profile: %v", err)), nil
	}
	return jsonResult(p)
}

func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.catalog.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	return jsonResult(st)
}

func (s *Server) handlePredict(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.predictor == nil {
		return mcp.NewToolResultError("model server is not configured"), nil
	}

	var params struct {
		Model     string             `json:"model"`
		ProfileID string             `json:"profile_id"`
		Features  map[string]float64 `json:"features"`
	}
	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	model, err := predict.ParseModelType(params.Model)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	features := params.Features
	if params.ProfileID != "" {
		p, err := s.catalog.Get(ctx, params.ProfileID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		features = predict.Features(*p)
	}

	pred, err := s.predictor.Predict(ctx, model, features)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prediction failed: %v", err)), nil
	}
	return jsonResult(pred)
}

// Serve starts the MCP server with stdio transport
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server for use with other transports (e.g., SSE)
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
