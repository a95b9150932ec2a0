package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/cmd/app/commands"
	"github.com/allisson/trustcore/internal/app"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new master key for the keyring KEK provider",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI used to wrap the master key (e.g., gcpkms://..., base64key://...); omit for a plaintext key",
				},
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				return commands.RunCreateMasterKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-key-uri"),
				)
			}),
		},
		{
			Name:  "encrypt-secret",
			Usage: "Seal a secret read from stdin for use in WEBHOOK_SECRETS or OUTBOUND_VENDOR_SECRETS",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "kek-ref",
					Aliases: []string{"k"},
					Value:   "",
					Usage:   "KEK reference to wrap the DEK with (defaults to the active master key or first KMS ref)",
				},
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				vault, err := container.Vault()
				if err != nil {
					return err
				}
				kekRef := cmd.String("kek-ref")
				if kekRef == "" {
					if kekRef, err = container.ActiveKekRef(); err != nil {
						return err
					}
				}

				return commands.RunEncryptSecret(
					ctx,
					vault,
					container.Logger(),
					commands.DefaultIO(),
					kekRef,
					cmd.String("format"),
				)
			}),
		},
		{
			Name:  "decrypt-secret",
			Usage: "Print the plaintext of a sealed value",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Sealed value (enc:...)",
				},
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				vault, err := container.Vault()
				if err != nil {
					return err
				}

				return commands.RunDecryptSecret(ctx, vault, commands.DefaultIO(), cmd.String("value"))
			}),
		},
		{
			Name:  "rotate-dek",
			Usage: "Re-encrypt a sealed value under a fresh DEK",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Sealed value (enc:...)",
				},
				&cli.StringFlag{
					Name:    "kek-ref",
					Aliases: []string{"k"},
					Value:   "",
					Usage:   "KEK reference for the new envelope (defaults to the current one)",
				},
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				vault, err := container.Vault()
				if err != nil {
					return err
				}

				return commands.RunRotateDEK(
					ctx,
					vault,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("value"),
					cmd.String("kek-ref"),
					cmd.String("format"),
				)
			}),
		},
	}
}
