package backfill

import (
	"encoding/json"
	"fmt"

	"github.com/healthrip/healthrip/internal/models"
)

// mcpContent is one item of an MCP tool response's content array.
type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolResult is the shape of a callTool result. Depending on the HAE app
// version the metrics arrive either wrapped in MCP content (content[].text
// holds an embedded JSON document) or directly under result.data.
type toolResult struct {
	Content []mcpContent `json:"content"`
	Data    *models.Data `json:"data"`
}

// ExtractMetrics pulls the metrics list out of a health_metrics tool result.
func ExtractMetrics(result json.RawMessage) ([]models.Metric, error) {
	if len(result) == 0 {
		return nil, nil
	}

	var res toolResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("parsing tool result: %w", err)
	}

	// MCP wrapper: content[].text contains the payload as a JSON string.
	for _, item := range res.Content {
		if item.Type != "text" {
			continue
		}
		var payload models.Payload
		if err := json.Unmarshal([]byte(item.Text), &payload); err != nil {
			continue
		}
		if len(payload.Data.Metrics) > 0 {
			return payload.Data.Metrics, nil
		}
	}

	// Direct format: result.data.metrics.
	if res.Data != nil {
		return res.Data.Metrics, nil
	}

	return nil, nil
}
