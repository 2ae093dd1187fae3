package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(router fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	router.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		p, err := svc.Fetch(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch profile"})
		}
		return c.JSON(p)
	})
}
