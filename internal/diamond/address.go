package diamond

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// ParseAddress parses a module reference given either as a Neo address
// (N...) or as 40 hex digits in little-endian order with an optional 0x.
func ParseAddress(s string) (util.Uint160, error) {
	s = strings.TrimSpace(s)
	if len(s) == 34 && strings.HasPrefix(s, "N") {
		u, err := address.StringToUint160(s)
		if err != nil {
			return util.Uint160{}, fmt.Errorf("parse address %q: %w", s, err)
		}
		return u, nil
	}
	u, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	return u, nil
}

// FormatAddress renders u the way it appears in JSON.
func FormatAddress(u util.Uint160) string {
	return "0x" + u.StringLE()
}
