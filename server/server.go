// Package server exposes the HTTP API: the paged feed, the public newsfeed,
// reaction endpoints, account routes, and the operational endpoints.
package server

import (
	"errors"
	"strconv"
	"time"

	"frontpage/auth"
	"frontpage/config"
	"frontpage/db"
	"frontpage/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {

	// The hostname the server answers as
	Hostname string

	// The reader half of the store
	Reader *db.Reader

	// The writer half of the store, for reactions and account removal
	Writer *db.Writer

	// Auth turns bearer tokens into stored users
	Auth *auth.Authenticator

	// Settings carries the feed and paging knobs
	Settings *config.Config

	// AllowOrigins configures CORS for the frontend origin
	AllowOrigins string
}

// Returns a fiber.App instance serving the frontpage HTTP API
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowHeaders: "Authorization, Content-Type",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":  "frontpage",
			"endpoint": "https://" + config.Hostname,
		})
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := config.Reader.Ping(c.Context()); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// The ranked feed, with the viewer's own reactions attached when a
	// token is presented
	api.Get("/feed", config.Auth.Optional(), func(c *fiber.Ctx) error {
		sort, ok := models.ParseSortMode(c.Query("sort", ""))
		if !ok {
			return jsonError(c, fiber.StatusBadRequest, "bad_request")
		}

		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}

		feed, err := config.Reader.Feed(c.Context(), page, config.Settings.Feed.PerPage, sort)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error reading feed")
			return jsonError(c, fiber.StatusInternalServerError, "storage_error")
		}

		if user, ok := auth.UserFrom(c); ok {
			liked, disliked, err := config.Reader.Reactions(c.Context(), user.ID)
			if err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("Error reading reactions")
				return jsonError(c, fiber.StatusInternalServerError, "storage_error")
			}
			feed.Viewer = &models.Viewer{LikedIDs: liked, DislikedIDs: disliked, Admin: user.Admin}
		}

		return c.JSON(feed)
	})

	// Public newsfeed, no auth
	api.Get("/newsfeed", func(c *fiber.Ctx) error {
		items, err := config.Reader.Newsfeed(c.Context(), config.Settings.Feed.NewsfeedLimit)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error reading newsfeed")
			return jsonError(c, fiber.StatusInternalServerError, "storage_error")
		}

		return c.JSON(fiber.Map{"news_items": items})
	})

	api.Post("/items/:id/like", config.Auth.Required(), react(config, models.IntentLike))
	api.Post("/items/:id/dislike", config.Auth.Required(), react(config, models.IntentDislike))

	api.Get("/me", config.Auth.Required(), func(c *fiber.Ctx) error {
		user, _ := auth.UserFrom(c)
		return c.JSON(user)
	})

	api.Get("/users", config.Auth.Required(), config.Auth.RequireAdmin(), func(c *fiber.Ctx) error {
		users, err := config.Reader.Users(c.Context())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing users")
			return jsonError(c, fiber.StatusInternalServerError, "storage_error")
		}

		return c.JSON(users)
	})

	api.Delete("/users/:id", config.Auth.Required(), config.Auth.RequireAdmin(), func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request")
		}

		if err := config.Writer.DeleteUser(c.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return jsonError(c, fiber.StatusNotFound, "not_found")
			}
			log.WithFields(log.Fields{
				"user":  id,
				"error": err,
			}).Error("Error deleting user")
			return jsonError(c, fiber.StatusInternalServerError, "storage_error")
		}

		return c.JSON(fiber.Map{"deleted": id})
	})

	return app
}

// react handles one press of the like or dislike button.
func react(config *ServerConfig, intent models.Intent) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request")
		}

		user, _ := auth.UserFrom(c)

		outcome, err := config.Writer.React(c.Context(), user.ID, id, intent)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return jsonError(c, fiber.StatusNotFound, "not_found")
			}
			log.WithFields(log.Fields{
				"item":  id,
				"error": err,
			}).Error("Error recording reaction")
			return jsonError(c, fiber.StatusInternalServerError, "storage_error")
		}

		return c.JSON(fiber.Map{"result": outcome})
	}
}

func jsonError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
