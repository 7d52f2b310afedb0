package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	commp "github.com/filecoin-project/go-commp-utils/v2"
	padreader "github.com/filecoin-project/go-padreader"
	"github.com/filecoin-project/go-state-types/abi"
)

var verifyCmd = &cli.Command{
	Name:      "verify",
	Usage:     "Recompute a piece file's CID and compare it against the expected one",
	ArgsUsage: "[file] [expected-cid]",
	Description: `Computes the piece commitment (CommP) of a local file. When no expected
CID is supplied the file's base name is used, since piece files are named by
their piece CID. Exits non-zero on a mismatch.`,
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() < 1 || cctx.NArg() > 2 {
			return xerrors.New("must supply a file path and optionally the expected piece CID")
		}

		path := cctx.Args().Get(0)

		expectedStr := cctx.Args().Get(1)
		if expectedStr == "" {
			base := filepath.Base(path)
			expectedStr = strings.TrimSuffix(base, filepath.Ext(base))
		}
		expected, err := cid.Parse(expectedStr)
		if err != nil {
			return xerrors.Errorf("parsing expected piece cid %q: %w", expectedStr, err)
		}

		actual, err := pieceCIDOf(path)
		if err != nil {
			return err
		}

		fmt.Printf("Computed: %s\n", actual)
		fmt.Printf("Expected: %s\n", expected)
		if actual != expected {
			return xerrors.New("MISMATCH: piece content does not match its CID")
		}
		fmt.Println("MATCH")
		return nil
	},
}

func pieceCIDOf(path string) (cid.Cid, error) {
	f, err := os.Open(path)
	if err != nil {
		return cid.Undef, xerrors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return cid.Undef, xerrors.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		return cid.Undef, xerrors.Errorf("%s is empty", path)
	}

	// CommP is computed over the zero-padded piece, so pad the file out to
	// the next valid unpadded piece size.
	unpadded := padreader.PaddedSize(uint64(st.Size()))
	r := io.MultiReader(f, io.LimitReader(zeros{}, int64(unpadded)-st.Size()))

	pc, err := commp.GeneratePieceCIDFromFile(abi.RegisteredSealProof_StackedDrg64GiBV1_1, r, unpadded)
	if err != nil {
		return cid.Undef, xerrors.Errorf("computing piece cid for %s: %w", path, err)
	}
	return pc, nil
}

// zeros reads an endless stream of zero bytes.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
