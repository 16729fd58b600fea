package cmd

import (
	"fmt"

	"frontpage/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by pruning the oldest items beyond the
		retention cap.

		The synchronizer prunes after every pass, so this is only needed
		after lowering the cap in the configuration.`,
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
			fmt.Println("Database configured: ", database)

			pruned, err := db.Tidy(ctx.Context, database, cfg.Sync.Retain)
			if err != nil {
				return err
			}

			fmt.Printf("Pruned %d items\n", pruned)
			return nil
		},
	}
}
