package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/healthrip/healthrip/internal/backfill"
)

// statsRange resolves the date range for a stats query, defaulting to the
// configured backfill range.
func (h *handlers) statsRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, end := h.start, h.end
	var err error

	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// --- Tool definitions ---

var toolGetBackfillStatus = mcp.NewTool("get_backfill_status",
	mcp.WithDescription("Get the historical health data import status: days completed, remaining, percentage, coverage range, import rate, and estimated time to completion."),
	mcp.WithString("start", mcp.Description("Range start date (YYYY-MM-DD). Defaults to the configured backfill start.")),
	mcp.WithString("end", mcp.Description("Range end date (YYYY-MM-DD). Defaults to the configured backfill end.")),
)

var toolGetBackfillGaps = mcp.NewTool("get_backfill_gaps",
	mcp.WithDescription("List days missing within the already-imported date range. Useful for spotting holes left by failed imports."),
)

// --- Tool handlers ---

func (h *handlers) getBackfillStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := h.statsRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	stats, err := backfill.ComputeStats(h.progress, start, end)
	if err != nil {
		h.log.Error("mcp get_backfill_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}

func (h *handlers) getBackfillGaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := backfill.ComputeStats(h.progress, h.start, h.end)
	if err != nil {
		h.log.Error("mcp get_backfill_gaps", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"gap_count": stats.GapCount,
		"gaps":      stats.Gaps,
	})
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}
