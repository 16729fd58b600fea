package cmd

import (
	"errors"
	"fmt"

	"frontpage/db"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func usersCmd() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage registered users",
		Subcommands: []*cli.Command{
			usersListCmd(),
			usersRmCmd(),
		},
	}
}

func usersListCmd() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List registered users",
		Description: `Prints one line per registered user with id, email, name and admin flag.`,
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			reader, err := db.NewReader(ctx.String("database"))
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer reader.Close()

			users, err := reader.Users(ctx.Context)
			if err != nil {
				return err
			}

			for _, user := range users {
				fmt.Printf("%d\t%s\t%s\tadmin=%t\n", user.ID, user.Email, user.Name, user.Admin)
			}
			return nil
		},
	}
}

func usersRmCmd() *cli.Command {
	return &cli.Command{
		Name:  "rm",
		Usage: "Remove a registered user",
		Description: `Removes a user and their reactions. The like and dislike counters of
the items the user reacted to are decremented so the feed ranking no
longer reflects the removed account.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Id of the user to remove",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Skip the confirmation prompt",
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			id := ctx.Int64("id")

			reader, err := db.NewReader(database)
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer reader.Close()

			user, err := reader.UserByID(ctx.Context, id)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return fmt.Errorf("no user with id %d", id)
				}
				return err
			}

			if !ctx.Bool("yes") {
				answer, err := prompt.New().Ask(fmt.Sprintf("Removing %s and their reactions. Type the email to confirm:", user.Email)).Input("")
				if err != nil {
					return err
				}
				if answer != user.Email {
					return errors.New("confirmation did not match, aborting")
				}
			}

			writer, err := db.NewWriter(database)
			if err != nil {
				return fmt.Errorf("could not open database: %w", err)
			}
			defer writer.Close()

			if err := writer.DeleteUser(ctx.Context, id); err != nil {
				return err
			}

			fmt.Println("Removed user", user.Email)
			return nil
		},
	}
}
