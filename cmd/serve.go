package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontpage/auth"
	"frontpage/db"
	"frontpage/hackernews"
	"frontpage/ingest"
	"frontpage/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the frontpage HTTP API",
		Description: `Starts the frontpage HTTP server.

Runs database migrations, opens the store and serves the feed API on the
configured port. With --sync-interval above zero a built-in timer refreshes
the upstream window between requests; in production the expected trigger is
a cron job running "frontpage sync".`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname where the server is running",
				EnvVars: []string{"FRONTPAGE_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"FRONTPAGE_PORT"},
			},
			databaseFlag(),
			configFlag(),
			secretFlag(),
			&cli.StringFlag{
				Name:    "cors-origin",
				Value:   "*",
				Usage:   "Origins allowed to call the API from a browser",
				EnvVars: []string{"FRONTPAGE_CORS_ORIGIN"},
			},
			&cli.DurationFlag{
				Name:    "sync-interval",
				Usage:   "Interval between synchronizer passes, 0 leaves syncing to cron",
				EnvVars: []string{"FRONTPAGE_SYNC_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			secret := ctx.String("session-secret")
			if secret == "" {
				return errors.New("a session secret is required, set --session-secret or FRONTPAGE_SESSION_SECRET")
			}

			cfg, err := loadSettings(ctx)
			if err != nil {
				return err
			}
			if ctx.String("hostname") != "" {
				cfg.Hostname = ctx.String("hostname")
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("could not run migrations: %w", err)
			}

			writer, err := db.NewWriter(database)
			if err != nil {
				return fmt.Errorf("could not open database for writing: %w", err)
			}
			defer writer.Close()
			if err := writer.Ping(ctx.Context); err != nil {
				return fmt.Errorf("could not reach database: %w", err)
			}

			reader, err := db.NewReader(database)
			if err != nil {
				return fmt.Errorf("could not open database for reading: %w", err)
			}
			defer reader.Close()

			app := server.Server(&server.ServerConfig{
				Hostname: cfg.Hostname,
				Reader:   reader,
				Writer:   writer,
				Auth: &auth.Authenticator{
					Secret:  []byte(secret),
					Users:   writer,
					IsAdmin: cfg.IsAdmin,
				},
				Settings:     cfg,
				AllowOrigins: ctx.String("cors-origin"),
			})

			syncCtx, stopSync := context.WithCancel(ctx.Context)
			defer stopSync()

			if interval := ctx.Duration("sync-interval"); interval > 0 {
				source := hackernews.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout.Duration)
				opts := ingest.Options{FetchLimit: cfg.Sync.FetchLimit, Retain: cfg.Sync.Retain}
				go ingest.Run(syncCtx, source, writer, opts, interval)
			}

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-quit
				log.Info("Gracefully shutting down...")
				stopSync()
				app.ShutdownWithTimeout(60 * time.Second)
			}()

			if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			return nil
		},
	}
}
