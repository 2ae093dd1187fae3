package bridge

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, b *Bridge, authMiddleware fiber.Handler) {
	r.Post("/:deviceID/commands", authMiddleware, func(c *fiber.Ctx) error {
		var cmd Command
		if err := c.BodyParser(&cmd); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid command payload"})
		}
		if cmd.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command name is required"})
		}
		if err := b.Send(c.Context(), c.Params("deviceID"), cmd); err != nil {
			return channelError(c, err)
		}
		return c.JSON(fiber.Map{"status": "delivered"})
	})

	r.Post("/:deviceID/ping", authMiddleware, func(c *fiber.Ctx) error {
		if err := b.Ping(c.Context(), c.Params("deviceID")); err != nil {
			return channelError(c, err)
		}
		return c.JSON(fiber.Map{"status": "reachable"})
	})
}

func channelError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrChannelUnreachable) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "device channel unreachable"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to relay command"})
}
