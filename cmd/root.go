package cmd

import (
	"errors"
	"io/fs"
	"os"

	"frontpage/config"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "frontpage",
		Usage: "A personalized mirror of the Hacker News frontpage",
		Description: `Frontpage mirrors the top stories from Hacker News into a local
		SQLite database and serves them over an HTTP API. Signed-in readers
		can like and dislike stories, and the feed can be ranked by recency
		or by popularity among the readers.

		The synchronizer keeps a bounded window of recent stories: each pass
		refreshes the top of the upstream index and prunes the oldest rows
		beyond the retention cap.

		Flags can generally be set via environment variables, e.g.:

		--database => FRONTPAGE_DATABASE=frontpage.db
		--port => FRONTPAGE_PORT=3000
		`,
		Commands: []*cli.Command{
			serveCmd(),
			syncCmd(),
			tidyCmd(),
			migrateCmd(),
			rollbackCmd(),
			usersCmd(),
			tokenCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// Execute loads a .env file if one is present and runs the CLI.
func Execute() {
	godotenv.Load()

	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "frontpage.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"FRONTPAGE_DATABASE"},
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.toml",
		Usage:   "Path to the configuration file",
		EnvVars: []string{"FRONTPAGE_CONFIG"},
	}
}

func secretFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "session-secret",
		Usage:   "Secret used to verify bearer tokens",
		EnvVars: []string{"FRONTPAGE_SESSION_SECRET"},
	}
}

// loadSettings reads the configuration file named by the --config flag. The
// default path may be absent, in which case the defaults apply; a path the
// operator named explicitly must exist.
func loadSettings(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String("config")
	if path != "" && !ctx.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return config.LoadConfig(path)
}
