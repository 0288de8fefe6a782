package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an account on the execution layer.
type Address = common.Address

// ZeroAddress is never a valid source or successor entity.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed hex address.
// Unlike common.HexToAddress it rejects malformed input instead of truncating it.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAddresses parses every entry of ss, failing on the first malformed one.
func ParseAddresses(ss []string) ([]Address, error) {
	out := make([]Address, 0, len(ss))
	for i, s := range ss {
		a, err := ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}
