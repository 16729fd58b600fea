package cmd

import (
	"errors"
	"fmt"
	"time"

	"frontpage/auth"
	"frontpage/models"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a development bearer token",
		Description: `Signs a bearer token for local development and testing.

In production tokens come from the identity provider; this command signs
one with the configured session secret so the API can be exercised
without a provider.`,
		Flags: []cli.Flag{
			secretFlag(),
			&cli.StringFlag{
				Name:  "email",
				Usage: "Email claim of the token subject",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Display name claim",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Value: 24 * time.Hour,
				Usage: "How long the token stays valid",
			},
		},
		Action: func(ctx *cli.Context) error {
			secret := ctx.String("session-secret")
			if secret == "" {
				return errors.New("a session secret is required, set --session-secret or FRONTPAGE_SESSION_SECRET")
			}

			email := ctx.String("email")
			if email == "" {
				answer, err := prompt.New().Ask("Email:").Input("reader@example.com")
				if err != nil {
					return err
				}
				email = answer
			}
			if email == "" {
				return errors.New("an email is required")
			}

			raw, err := auth.IssueToken(models.Profile{
				Email:         email,
				Name:          ctx.String("name"),
				EmailVerified: true,
			}, []byte(secret), ctx.Duration("ttl"))
			if err != nil {
				return err
			}

			fmt.Println(raw)
			return nil
		},
	}
}
