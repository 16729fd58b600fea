package cmd

import (
	"fmt"

	"frontpage/db"
	"frontpage/hackernews"
	"frontpage/ingest"

	"github.com/urfave/cli/v2"
)

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one synchronizer pass",
		Description: `Fetches the top of the upstream index, upserts the stories into the
database and prunes the oldest rows beyond the retention cap.

Intended to be run from cron. Exits non-zero when the pass cannot
complete, so failures surface in the cron mail.`,
		Flags: []cli.Flag{
			databaseFlag(),
			configFlag(),
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadSettings(ctx)
			if err != nil {
				return err
			}

			database := ctx.String("database")
			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("could not run migrations: %w", err)
			}

			writer, err := db.NewWriter(database)
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer writer.Close()

			source := hackernews.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout.Duration)
			stats, err := ingest.Sync(ctx.Context, source, writer, ingest.Options{
				FetchLimit: cfg.Sync.FetchLimit,
				Retain:     cfg.Sync.Retain,
			})
			if err != nil {
				return fmt.Errorf("synchronizer pass failed: %w", err)
			}

			fmt.Printf("Stored %d items (%d skipped), pruned %d in %s\n",
				stats.Fetched, stats.Skipped, stats.Pruned, stats.Elapsed)
			return nil
		},
	}
}
