// Package fil formats and parses attoFIL-denominated amounts.
package fil

import (
	"fmt"
	"math/big"
	"strings"

	stbig "github.com/filecoin-project/go-state-types/big"
)

// Precision is attoFIL per FIL.
const Precision = 1_000_000_000_000_000_000

// Format renders an attoFIL amount as a decimal FIL string.
func Format(atto stbig.Int) string {
	if atto.Int == nil || atto.Sign() == 0 {
		return "0 FIL"
	}
	r := new(big.Rat).SetFrac(atto.Int, big.NewInt(Precision))
	s := strings.TrimRight(r.FloatString(18), "0")
	s = strings.TrimRight(s, ".")
	return s + " FIL"
}

// Parse converts a decimal FIL string (with or without a "FIL" suffix) to
// attoFIL. Sub-attoFIL precision is rejected.
func Parse(s string) (stbig.Int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "FIL"))
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return stbig.Zero(), fmt.Errorf("failed to parse %q as a decimal number", s)
	}
	r = r.Mul(r, big.NewRat(Precision, 1))
	if !r.IsInt() {
		return stbig.Zero(), fmt.Errorf("invalid FIL value %q: smaller than 1 attoFIL", s)
	}
	return stbig.NewFromGo(r.Num()), nil
}
