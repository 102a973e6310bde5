package wallet

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// decodeHex accepts backend hex with or without 0x and with an odd number of
// digits, the way devices and providers return it.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if s == "" {
		return []byte{}, nil
	}
	return hexutil.Decode("0x" + s)
}

// decodeHexBig decodes a hex signature component into an integer. Leading
// zero bytes carry no value and are dropped.
func decodeHexBig(s string) (*big.Int, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
