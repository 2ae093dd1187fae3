package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// LiveSync starts and stops the live reconciliation loop for a session.
// A nil implementation is allowed; session lifecycle works without it.
type LiveSync interface {
	Begin(Session)
	End(sessionID string)
}

func RegisterRoutes(r fiber.Router, svc *Service, live LiveSync, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Session
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.HostID == "" {
			req.HostID, _ = c.Locals("user_id").(string)
		}
		if req.Name == "" || req.HostID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name and host_id required")
		}
		sess, err := svc.CreateSession(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		sess, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(sess)
	})

	r.Get("/:id/participants", authMiddleware, func(c *fiber.Ctx) error {
		participants, err := svc.Participants(c.Context(), c.Params("id"))
		if err != nil {
			return statusError(err)
		}
		return c.JSON(participants)
	})

	r.Post("/:id/join", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			JoinCode string `json:"join_code"`
		}
		_ = c.BodyParser(&body)

		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}
		participant, err := svc.Join(c.Context(), c.Params("id"), userID, body.JoinCode)
		if err != nil {
			return statusError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(participant)
	})

	r.Post("/:id/leave", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if err := svc.Leave(c.Context(), c.Params("id"), userID); err != nil {
			return statusError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/start", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		sess, err := svc.Start(c.Context(), c.Params("id"), userID)
		if err != nil {
			return statusError(err)
		}
		if live != nil {
			live.Begin(sess)
		}
		return c.JSON(sess)
	})

	r.Post("/:id/complete", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		sess, err := svc.Complete(c.Context(), c.Params("id"), userID)
		if err != nil {
			return statusError(err)
		}
		if live != nil {
			live.End(sess.ID)
		}
		return c.JSON(sess)
	})

	r.Post("/:id/cancel", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		sess, err := svc.Cancel(c.Context(), c.Params("id"), userID)
		if err != nil {
			return statusError(err)
		}
		if live != nil {
			live.End(sess.ID)
		}
		return c.JSON(sess)
	})
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionFull), errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrBadJoinCode):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
