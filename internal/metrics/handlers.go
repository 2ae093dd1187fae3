package metrics

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Decorator joins ranked entries with profile display metadata.
type Decorator interface {
	DecorateRanked(ctx context.Context, entries []RankedEntry) []LeaderboardEntry
}

func RegisterRoutes(r fiber.Router, store *Store, decorator Decorator, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Record
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if userID, _ := c.Locals("user_id").(string); userID != "" {
			req.UserID = userID
		}
		if req.SessionID == "" || req.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "session_id and user_id required")
		}
		rec, err := store.Push(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	})

	r.Get("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		snapshot, err := fetchSnapshot(c.Context(), store, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(snapshot)
	})

	r.Get("/sessions/:id/aggregate", authMiddleware, func(c *fiber.Ctx) error {
		snapshot, err := fetchSnapshot(c.Context(), store, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(Aggregate(snapshot))
	})

	r.Get("/sessions/:id/leaderboard", authMiddleware, func(c *fiber.Ctx) error {
		metric := Metric(c.Query("metric", string(MetricEnergy)))
		if !metric.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown metric")
		}
		snapshot, err := fetchSnapshot(c.Context(), store, c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		ranked := Rank(snapshot, metric)
		if decorator == nil {
			return c.JSON(ranked)
		}
		return c.JSON(decorator.DecorateRanked(c.Context(), ranked))
	})
}

func fetchSnapshot(ctx context.Context, store *Store, sessionID string) (Snapshot, error) {
	records, err := store.Fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Reconcile(Snapshot{}, records), nil
}
