package server

import (
	"snapgrid/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags evaluated for the caller
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SuccessResponse
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return models.RespondWithSuccess(c, fiber.StatusOK, "Feature flags", fiber.Map{
		"flags":   s.featureFlags.Snapshot(currentUserID(c)),
		"rollout": s.featureFlags.Raw(),
	})
}
