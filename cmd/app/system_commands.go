package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/cmd/app/commands"
	"github.com/allisson/trustcore/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Create the merkle_roots table for ATTESTATION_STORAGE=database",
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				cfg := container.Config()
				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			}),
		},
	}
}
