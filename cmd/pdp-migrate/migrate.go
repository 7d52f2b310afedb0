package main

import (
	"github.com/urfave/cli/v2"

	"github.com/TippyFlitsUK/migrate-pdp-node/migration"
	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Upload all piece files from the source directory to the PDP service",
	Description: `Runs the migration configured through PDP_* environment variables.

Progress is checkpointed after every batch, so the command can be interrupted
and re-run; pieces already migrated are never resubmitted. Per-piece failures
do not abort the run: transient ones are retried by simply running the command
again, permanent ones are recorded and skipped.

Exits non-zero only on fatal conditions (missing configuration, unreadable
source directory, corrupt progress file).`,
	Action: func(cctx *cli.Context) error {
		ctx := ReqContext(cctx)

		cfg, err := migration.FromEnv()
		if err != nil {
			return err
		}
		if err := cfg.ValidateMigration(); err != nil {
			return err
		}

		store, err := migration.OpenProgressStore(cfg.ProgressFile)
		if err != nil {
			return err
		}

		client := pdp.NewClient(cfg.ServiceURL, cfg.AuthToken, cfg.UploadTimeout)
		return migration.New(cfg, store, client).Run(ctx)
	},
}
