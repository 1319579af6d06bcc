package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/loom/pkg/pipeline"
)

var (
	refreshToolName    = "narrative_refresh"
	refreshDescription = "Rebuild the story memory from the entire backlog. Discards derived state (events, characters, situation, but not settings) and reprocesses all content. Use after large out-of-band edits to the story."
)

// RefreshInput represents the input arguments for the MCP narrative_refresh tool.
type RefreshInput struct{}

// RefreshOutput represents the structured output of a refresh.
type RefreshOutput struct {
	Narrative      string `json:"narrative"`
	EventCount     int    `json:"event_count"`
	CharacterCount int    `json:"character_count"`
}

// handleRefresh processes a full refresh request via MCP.
func (s *Server) handleRefresh(ctx context.Context, _ *mcp.CallToolRequest, _ RefreshInput) (*mcp.CallToolResult, RefreshOutput, error) {
	err := s.config.Pipeline.Refresh(ctx)
	switch {
	case err == nil:

	case errors.Is(err, pipeline.ErrBusy):
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "A memory cycle is already running; try again shortly."},
			},
		}, RefreshOutput{}, nil

	case errors.Is(err, pipeline.ErrNotEnoughContent):
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Not enough story content to refresh from."},
			},
		}, RefreshOutput{}, nil

	default:
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Refresh failed: %v", err)},
			},
		}, RefreshOutput{}, nil
	}

	st, err := s.config.Pipeline.State(ctx)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Refresh completed but state read failed: %v", err)},
			},
		}, RefreshOutput{}, nil
	}

	output := RefreshOutput{
		Narrative:      s.config.Pipeline.Key(),
		EventCount:     len(st.Events),
		CharacterCount: len(st.Characters),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Memory rebuilt: %d events, %d characters.", output.EventCount, output.CharacterCount)},
		},
	}, output, nil
}
