package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/cmd/app/commands"
	"github.com/allisson/trustcore/internal/app"
)

func getLicenseCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-license-keypair",
			Usage: "Generate an Ed25519 key pair for signing licenses",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunGenerateLicenseKeypair(commands.DefaultIO(), cmd.String("format"))
			},
		},
		{
			Name:  "sign-license",
			Usage: "Sign a license payload and print the license document",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "payload",
					Aliases: []string{"p"},
					Value:   "-",
					Usage:   "Path to the license payload JSON ('-' for stdin)",
				},
				&cli.StringFlag{
					Name:    "private-key",
					Sources: cli.EnvVars("LICENSE_PRIVATE_KEY"),
					Usage:   "Base64 Ed25519 private key or seed",
				},
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				return commands.RunSignLicense(
					commands.DefaultIO(),
					container.Logger(),
					cmd.String("private-key"),
					cmd.String("payload"),
				)
			}),
		},
		{
			Name:  "verify-license",
			Usage: "Verify a license document and report its status",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "file",
					Usage: "Path to the license document (defaults to LICENSE_FILE)",
				},
				&cli.StringFlag{
					Name:  "public-key",
					Usage: "Base64 Ed25519 public key (defaults to LICENSE_PUBLIC_KEY)",
				},
				&cli.StringFlag{
					Name:  "feature",
					Usage: "Also require this feature to be licensed",
				},
				&cli.StringFlag{
					Name:  "at",
					Usage: "Verify as of this RFC 3339 time instead of now",
				},
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				cfg := container.Config()
				path := cmd.String("file")
				if path == "" {
					path = cfg.LicenseFile
				}
				if path == "" {
					return fmt.Errorf("--file or LICENSE_FILE is required")
				}
				publicKey := cmd.String("public-key")
				if publicKey == "" {
					publicKey = cfg.LicensePublicKey
				}
				now := time.Now()
				if at := cmd.String("at"); at != "" {
					parsed, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("invalid --at: %w", err)
					}
					now = parsed
				}

				return commands.RunVerifyLicense(
					container.LicenseVerifier(),
					commands.DefaultIO(),
					path,
					publicKey,
					cmd.String("feature"),
					now,
					cmd.String("format"),
				)
			}),
		},
	}
}
