package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/pkg/logger"
)

// ClassificationCache is the slice of the cache client the admin surface
// needs.
type ClassificationCache interface {
	InvalidateClassifications(ctx context.Context) (int, error)
}

// AdminHandler exposes operational endpoints, currently cache invalidation
// for when the taxonomy prompt changes and stale labels must be flushed.
type AdminHandler struct {
	cache ClassificationCache
}

func NewAdminHandler(cache ClassificationCache) *AdminHandler {
	return &AdminHandler{
		cache: cache,
	}
}

func (h *AdminHandler) InvalidateClassifications(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Cache is not configured",
		})
	}

	deleted, err := h.cache.InvalidateClassifications(c.Context())
	if err != nil {
		logger.Error("Failed to invalidate classifications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to invalidate classifications",
		})
	}

	logger.Info("Classification cache invalidated", zap.Int("deleted", deleted))
	return c.JSON(fiber.Map{
		"deleted": deleted,
	})
}
