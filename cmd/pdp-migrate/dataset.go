package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/TippyFlitsUK/migrate-pdp-node/migration"
	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

var datasetCmd = &cli.Command{
	Name:      "dataset",
	Usage:     "Inspect an on-chain data set held by the PDP service",
	ArgsUsage: "[data-set-id]",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("must supply a data set id")
		}
		id, err := strconv.ParseUint(cctx.Args().First(), 10, 64)
		if err != nil {
			return xerrors.Errorf("parsing data set id: %w", err)
		}

		ctx := ReqContext(cctx)

		cfg, err := migration.FromEnv()
		if err != nil {
			return err
		}
		if err := cfg.RequireService(); err != nil {
			return err
		}

		ds, err := pdp.NewClient(cfg.ServiceURL, cfg.AuthToken, cfg.UploadTimeout).DataSetInfo(ctx, id)
		if err != nil {
			return xerrors.Errorf("fetching data set %d: %w", id, err)
		}

		fmt.Printf("Data set %d\n", ds.ID)
		fmt.Printf("  Owner:  %s\n", ds.Owner)
		fmt.Printf("  Pieces: %d\n", len(ds.Pieces))

		var total int64
		for _, p := range ds.Pieces {
			fmt.Printf("    %s  %s\n", p.PieceCID, humanize.IBytes(uint64(p.Size)))
			total += p.Size
		}
		if total > 0 {
			fmt.Printf("  Total:  %s\n", humanize.IBytes(uint64(total)))
		}
		return nil
	},
}
