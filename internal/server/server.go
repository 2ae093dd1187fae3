package server

import (
	"github.com/jimmypocock/FameFit-sub002/internal/auth"
	"github.com/jimmypocock/FameFit-sub002/internal/bridge"
	"github.com/jimmypocock/FameFit-sub002/internal/config"
	"github.com/jimmypocock/FameFit-sub002/internal/livesync"
	"github.com/jimmypocock/FameFit-sub002/internal/metrics"
	"github.com/jimmypocock/FameFit-sub002/internal/profile"
	"github.com/jimmypocock/FameFit-sub002/internal/session"
	"github.com/jimmypocock/FameFit-sub002/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Bridge *bridge.Bridge
	Live   *livesync.Manager
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	store := metrics.NewStore(db, cfg.MetricsFetchLimit)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: hub,
		Bridge: bridge.NewBridge(redisClient),
		Live: livesync.NewManager(store, livesync.Options{
			PollInterval:        cfg.PollInterval,
			ElapsedTick:         cfg.ElapsedTick,
			DisconnectThreshold: cfg.DisconnectThreshold,
			Broadcaster:         hub,
		}),
	}

	registerRoutes(s, store)
	return s
}

func registerRoutes(s *Server, store *metrics.Store) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	profileSvc := profile.NewService(s.DB)

	session.RegisterRoutes(s.App.Group("/sessions"), session.NewService(s.DB), s.Live, jwtMiddleware)
	metrics.RegisterRoutes(s.App.Group("/metrics"), store, profileSvc, jwtMiddleware)
	profile.RegisterRoutes(s.App.Group("/profiles"), profileSvc, jwtMiddleware)
	bridge.RegisterRoutes(s.App.Group("/bridge"), s.Bridge, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
