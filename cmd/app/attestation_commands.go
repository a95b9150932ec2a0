package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/trustcore/cmd/app/commands"
	"github.com/allisson/trustcore/internal/app"
	attestationRepository "github.com/allisson/trustcore/internal/attestation/repository"
	"github.com/allisson/trustcore/internal/config"
)

func getAttestationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "compute-merkle-root",
			Usage: "Compute the Merkle root of a list of attestation events",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "events",
					Aliases: []string{"e"},
					Value:   "-",
					Usage:   "Path to the events JSON ('-' for stdin)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunComputeMerkleRoot(commands.DefaultIO(), cmd.String("events"), cmd.String("format"))
			},
		},
		{
			Name:  "verify-merkle-root",
			Usage: "Verify a stored daily Merkle root against its events",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "date",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Day of the root (YYYY-MM-DD or YYYYMMDD)",
				},
				&cli.IntFlag{
					Name:  "segment",
					Value: 0,
					Usage: "Segment of the day's root written by a later run of the same day",
				},
				&cli.StringFlag{
					Name:    "events",
					Aliases: []string{"e"},
					Value:   "-",
					Usage:   "Path to the events JSON ('-' for stdin)",
				},
				formatFlag(),
			},
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, container *app.Container) error {
				attestationLog, err := container.AttestationLog()
				if err != nil {
					return err
				}

				return commands.RunVerifyMerkleRoot(
					ctx,
					attestationLog,
					commands.DefaultIO(),
					cmd.String("date"),
					cmd.Int("segment"),
					cmd.String("events"),
					cmd.String("format"),
				)
			}),
		},
		{
			Name:  "import-merkle-roots",
			Usage: "Import file-stored Merkle roots into the database storage",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "dir",
					Usage: "Directory of merkle-YYYYMMDD.json files (defaults to ATTESTATION_DIR)",
				},
				&cli.BoolFlag{
					Name:  "overwrite",
					Value: false,
					Usage: "Replace roots already stored in the database",
				},
				formatFlag(),
			},
			Action: withPreparedContainer(
				func(cmd *cli.Command, cfg *config.Config) error {
					if cfg.AttestationSigningKey == "" {
						return fmt.Errorf("ATTESTATION_SIGNING_KEY is required to verify imported roots")
					}
					cfg.AttestationStorage = config.AttestationStorageDatabase
					return nil
				},
				runImportMerkleRoots,
			),
		},
	}
}

func runImportMerkleRoots(ctx context.Context, cmd *cli.Command, container *app.Container) error {
	dir := cmd.String("dir")
	if dir == "" {
		dir = container.Config().AttestationDir
	}
	source, err := attestationRepository.NewFileRootRepository(dir)
	if err != nil {
		return err
	}
	target, err := container.RootRepository()
	if err != nil {
		return err
	}
	signer, err := container.RootSigner()
	if err != nil {
		return err
	}
	txManager, err := container.TxManager()
	if err != nil {
		return err
	}

	return commands.RunImportMerkleRoots(
		ctx,
		source,
		target,
		signer,
		txManager,
		container.Logger(),
		commands.DefaultIO(),
		cmd.Bool("overwrite"),
		cmd.String("format"),
	)
}
