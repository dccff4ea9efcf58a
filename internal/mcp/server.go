package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/healthrip/healthrip/internal/backfill"
)

// New creates an MCP server exposing backfill progress to a chat assistant.
// start and end bound the backfill date range the stats are computed over.
func New(progress *backfill.Progress, start, end time.Time, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("healthrip", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Apple Health backfill progress server. Query how much historical health data has been imported, which days are missing, and the current import rate."),
	)

	h := &handlers{progress: progress, start: start, end: end, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetBackfillStatus, Handler: h.getBackfillStatus},
		server.ServerTool{Tool: toolGetBackfillGaps, Handler: h.getBackfillGaps},
	)

	s.AddResources(
		server.ServerResource{Resource: resBackfillStatus, Handler: h.backfillStatus},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	progress *backfill.Progress
	start    time.Time
	end      time.Time
	log      *slog.Logger
}

// --- Resource definitions ---

var resBackfillStatus = mcp.NewResource(
	"healthrip://backfill_status",
	"Backfill Status",
	mcp.WithResourceDescription("Progress of the historical health data import: completion percentage, coverage, gaps, rate, and ETA"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) backfillStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := backfill.ComputeStats(h.progress, h.start, h.end)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
