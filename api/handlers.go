package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/loom/pkg/narrative"
	"github.com/papercomputeco/loom/pkg/pipeline"
	"github.com/papercomputeco/loom/pkg/tokens"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MemoryResponse contains the compiled memory artifact and its vitals.
type MemoryResponse struct {
	Narrative      string `json:"narrative"`
	Memory         string `json:"memory"`
	EventCount     int    `json:"event_count"`
	CharacterCount int    `json:"character_count"`
	TokenCount     int    `json:"token_count"`
}

// SettingsPatch carries a partial settings update. Nil fields are left
// untouched.
type SettingsPatch struct {
	TokenLimit      *int      `json:"token_limit,omitempty"`
	AutoUpdate      *bool     `json:"auto_update,omitempty"`
	TrackedKeywords *[]string `json:"tracked_keywords,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetMemory returns the compiled artifact for the pipeline's narrative.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	ctx := c.Context()

	st, err := s.pipe.State(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load state"})
	}

	memory := narrative.CompileState(st)

	return c.JSON(MemoryResponse{
		Narrative:      s.pipe.Key(),
		Memory:         memory,
		EventCount:     len(st.Events),
		CharacterCount: len(st.Characters),
		TokenCount:     tokens.Estimate(memory),
	})
}

// handleGetState returns the raw narrative state.
func (s *Server) handleGetState(c *fiber.Ctx) error {
	st, err := s.pipe.State(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load state"})
	}

	return c.JSON(st)
}

// handlePatchSettings applies a partial settings update and returns the
// normalized result.
func (s *Server) handlePatchSettings(c *fiber.Ctx) error {
	var patch SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid settings body"})
	}

	settings, err := s.pipe.UpdateSettings(c.Context(), func(st *narrative.Settings) {
		if patch.TokenLimit != nil {
			st.TokenLimit = *patch.TokenLimit
		}
		if patch.AutoUpdate != nil {
			st.AutoUpdate = *patch.AutoUpdate
		}
		if patch.TrackedKeywords != nil {
			st.TrackedKeywords = *patch.TrackedKeywords
		}
	})
	if err != nil {
		s.logger.Error("settings update failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to save settings"})
	}

	return c.JSON(settings)
}

// handleUpdate runs one incremental cycle.
func (s *Server) handleUpdate(c *fiber.Ctx) error {
	err := s.pipe.Update(c.Context())
	switch {
	case err == nil:
		return c.JSON(map[string]any{"status": "ok"})

	case errors.Is(err, pipeline.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "a cycle is already running"})

	case errors.Is(err, pipeline.ErrAutoUpdateDisabled):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "auto-update is disabled"})

	default:
		s.logger.Error("update cycle failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "update failed"})
	}
}

// handleRefresh rebuilds state from the entire backlog.
func (s *Server) handleRefresh(c *fiber.Ctx) error {
	err := s.pipe.Refresh(c.Context())
	switch {
	case err == nil:
		return c.JSON(map[string]any{"status": "ok"})

	case errors.Is(err, pipeline.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "a cycle is already running"})

	case errors.Is(err, pipeline.ErrNotEnoughContent):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "not enough content to refresh"})

	default:
		s.logger.Error("refresh failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "refresh failed"})
	}
}
