package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/tokens"
)

var (
	memoryToolName    = "narrative_memory"
	memoryDescription = "Read the compiled story memory: a token-bounded summary of events so far, the current situation, and key character states. Use this to recover narrative context before writing a continuation."
)

// MemoryInput represents the input arguments for the MCP narrative_memory tool.
type MemoryInput struct{}

// MemoryOutput represents the structured output of a memory read.
type MemoryOutput struct {
	Narrative      string `json:"narrative"`
	Memory         string `json:"memory"`
	EventCount     int    `json:"event_count"`
	CharacterCount int    `json:"character_count"`
	TokenCount     int    `json:"token_count"`
}

// handleMemory processes a memory read via MCP.
func (s *Server) handleMemory(ctx context.Context, _ *mcp.CallToolRequest, _ MemoryInput) (*mcp.CallToolResult, MemoryOutput, error) {
	st, err := s.config.Pipeline.State(ctx)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Memory read failed: %v", err)},
			},
		}, MemoryOutput{}, nil
	}

	memory := narrative.CompileState(st)

	output := MemoryOutput{
		Narrative:      s.config.Pipeline.Key(),
		Memory:         memory,
		EventCount:     len(st.Events),
		CharacterCount: len(st.Characters),
		TokenCount:     tokens.Estimate(memory),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, MemoryOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
