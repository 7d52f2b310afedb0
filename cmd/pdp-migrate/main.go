package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/TippyFlitsUK/migrate-pdp-node/build"
)

var log = logging.Logger("pdp-migrate")

func main() {
	_ = logging.SetLogLevel("*", "INFO")

	app := &cli.App{
		Name:    "pdp-migrate",
		Usage:   "Migrate local piece files to a PDP storage provider",
		Version: build.UserVersion(),
		Commands: []*cli.Command{
			migrateCmd,
			walletCmd,
			approveCmd,
			verifyCmd,
			datasetCmd,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"PDP_LOG_LEVEL"},
				Value:   "info",
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevel("*", cctx.String("log-level"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}
