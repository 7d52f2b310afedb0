package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/TippyFlitsUK/migrate-pdp-node/lib/fil"
	"github.com/TippyFlitsUK/migrate-pdp-node/migration"
	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

var approveCmd = &cli.Command{
	Name:      "approve",
	Usage:     "Approve the PDP service to spend from the wallet's deposit",
	ArgsUsage: "[amount]",
	Description: `Submits a one-shot approval transaction. The amount is a decimal FIL
value, e.g. "10" or "2.5 FIL". The command prints the transaction hash and
returns without waiting for it to land.`,
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("must supply the approval amount")
		}

		ctx := ReqContext(cctx)

		cfg, err := migration.FromEnv()
		if err != nil {
			return err
		}
		if err := cfg.RequireService(); err != nil {
			return err
		}
		addr, err := cfg.RequireWallet()
		if err != nil {
			return err
		}

		amount, err := fil.Parse(cctx.Args().First())
		if err != nil {
			return err
		}

		client := pdp.NewClient(cfg.ServiceURL, cfg.AuthToken, cfg.UploadTimeout)
		txHash, err := client.Approve(ctx, addr, amount)
		if err != nil {
			return xerrors.Errorf("submitting approval: %w", err)
		}

		fmt.Printf("Approved %s for %s\n", fil.Format(amount), addr)
		fmt.Printf("Transaction: %s\n", txHash)
		return nil
	},
}
