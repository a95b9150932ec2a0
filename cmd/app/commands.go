package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/internal/app"
	"github.com/allisson/trustcore/internal/config"
)

type containerAction func(ctx context.Context, cmd *cli.Command, container *app.Container) error

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getLicenseCommands()...)
	cmds = append(cmds, getAttestationCommands()...)
	cmds = append(cmds, getCanaryCommands()...)
	return cmds
}

// formatFlag is the --format flag shared by commands with text and json output.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

// withContainer runs action against a container built from the environment and shuts
// the container down when the command returns.
func withContainer(action containerAction) cli.ActionFunc {
	return withPreparedContainer(nil, action)
}

// withPreparedContainer is withContainer with a hook that may adjust or reject the
// loaded configuration before the container is built.
func withPreparedContainer(
	prepare func(cmd *cli.Command, cfg *config.Config) error,
	action containerAction,
) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.Load()
		if prepare != nil {
			if err := prepare(cmd, cfg); err != nil {
				return err
			}
		}

		container := app.NewContainer(cfg)
		defer func() { _ = container.Shutdown(ctx) }()

		return action(ctx, cmd, container)
	}
}
