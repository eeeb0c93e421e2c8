package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// TurnsResponse is the body of GET /turns.
type TurnsResponse struct {
	Count int             `json:"count"`
	Turns []*storage.Turn `json:"turns"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns aggregate counts over the stored turns.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.storer.Stats(c.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(stats)
}

// handleListTurns returns the newest turns, optionally filtered by subject.
func (s *Server) handleListTurns(c *fiber.Ctx) error {
	opts := storage.ListOptions{
		Subject: c.Query("subject"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "limit must be a positive integer"})
		}
		opts.Limit = min(limit, s.config.MaxListLimit)
	}

	turns, err := s.storer.List(c.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list turns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list turns"})
	}
	if turns == nil {
		turns = []*storage.Turn{}
	}

	return c.JSON(TurnsResponse{
		Count: len(turns),
		Turns: turns,
	})
}

// handleGetTurn returns a single turn by its ID.
func (s *Server) handleGetTurn(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "id parameter required"})
	}

	turn, err := s.storer.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "turn not found"})
		}
		s.logger.Error("failed to get turn", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get turn"})
	}

	return c.JSON(turn)
}
