package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/cmd/app/commands"
	"github.com/allisson/trustcore/internal/app"
	canaryHTTP "github.com/allisson/trustcore/internal/canary/http"
	canaryUseCase "github.com/allisson/trustcore/internal/canary/usecase"
)

func getCanaryCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "export-canary-manifest",
			Usage: "Print the manifest of the canaries behind CANARY_HONEYPOTS",
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				cfg := container.Config()
				honeypots, err := canaryHTTP.ParseHoneypots(cfg.CanaryHoneypots)
				if err != nil {
					return err
				}
				// Stable hashes depend only on the salt.
				registry := canaryUseCase.NewRegistry([]byte(cfg.CanarySalt), canaryUseCase.Options{}, nil, container.Logger())

				return commands.RunExportCanaryManifest(registry, honeypots, commands.DefaultIO())
			}),
		},
		{
			Name:  "verify-canary-hash",
			Usage: "Check a canary stable hash against CANARY_SALT",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Canary ID",
				},
				&cli.StringFlag{
					Name:     "hash",
					Required: true,
					Usage:    "Expected stable hash (hex)",
				},
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				cfg := container.Config()
				honeypots, err := canaryHTTP.ParseHoneypots(cfg.CanaryHoneypots)
				if err != nil {
					return err
				}
				registry := canaryUseCase.NewRegistry([]byte(cfg.CanarySalt), canaryUseCase.Options{}, nil, container.Logger())

				return commands.RunVerifyCanaryHash(
					registry,
					honeypots,
					commands.DefaultIO(),
					cmd.String("id"),
					cmd.String("hash"),
				)
			}),
		},
	}
}
