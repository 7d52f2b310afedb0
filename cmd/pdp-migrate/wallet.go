package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/TippyFlitsUK/migrate-pdp-node/lib/fil"
	"github.com/TippyFlitsUK/migrate-pdp-node/migration"
	"github.com/TippyFlitsUK/migrate-pdp-node/pdp"
)

var walletCmd = &cli.Command{
	Name:  "wallet",
	Usage: "Show the migration wallet's FIL balance and PDP service account state",
	Action: func(cctx *cli.Context) error {
		ctx := ReqContext(cctx)

		cfg, err := migration.FromEnv()
		if err != nil {
			return err
		}
		addr, err := cfg.RequireWallet()
		if err != nil {
			return err
		}

		node, closer, err := newFullNodeClient(ctx, cfg.LotusEndpoint)
		if err != nil {
			return err
		}
		defer closer()

		bal, err := node.WalletBalance(ctx, addr)
		if err != nil {
			return xerrors.Errorf("querying wallet balance: %w", err)
		}

		fmt.Printf("Wallet:          %s\n", addr)
		fmt.Printf("Chain balance:   %s\n", fil.Format(bal))

		if cfg.ServiceURL == "" {
			return nil
		}

		acct, err := pdp.NewClient(cfg.ServiceURL, cfg.AuthToken, cfg.UploadTimeout).Account(ctx, addr)
		if err != nil {
			return xerrors.Errorf("querying service account: %w", err)
		}
		fmt.Printf("Service deposit: %s\n", fil.Format(acct.Funds))
		fmt.Printf("Approved spend:  %s\n", fil.Format(acct.Approved))
		return nil
	},
}

// fullNodeClient exposes the one Filecoin full-node method this tool needs.
type fullNodeClient struct {
	WalletBalance func(context.Context, address.Address) (big.Int, error)
}

func newFullNodeClient(ctx context.Context, endpoint string) (*fullNodeClient, jsonrpc.ClientCloser, error) {
	var node fullNodeClient
	closer, err := jsonrpc.NewClient(ctx, endpoint, "Filecoin", &node, http.Header{})
	if err != nil {
		return nil, nil, xerrors.Errorf("connecting to %s: %w", endpoint, err)
	}
	return &node, closer, nil
}
