package addr

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/macsym/macsym/pkg/utils"
)

var (
	ErrParse     = errors.New("not a valid address")
	ErrOverflow  = errors.New("address overflow")
	ErrUnderflow = errors.New("address underflow")
)

// Addr is an image or runtime address. The zero value is the nil address.
type Addr uint64

// Parse reads an address from a decimal or 0x-prefixed hex string. Bare hex
// strings that happen to contain only decimal digits parse as decimal, like
// they do for atos.
func Parse(s string) (Addr, error) {
	if value, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Addr(value), nil
	}

	value, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, utils.MakeError(ErrParse, "%q", s)
	}

	return Addr(value), nil
}

func (a Addr) IsNil() bool {
	return a == 0
}

// Add returns a+b, failing instead of wrapping around
func (a Addr) Add(b Addr) (Addr, error) {
	if b > math.MaxUint64-a {
		return 0, utils.MakeError(ErrOverflow, "%v + %v", a, b)
	}

	return a + b, nil
}

// AddSigned offsets the address by a signed delta, failing on wrap-around in
// either direction
func (a Addr) AddSigned(delta int64) (Addr, error) {
	if delta >= 0 {
		return a.Add(Addr(delta))
	}

	return a.Sub(Addr(-delta))
}

// Sub returns a-b, failing instead of wrapping around
func (a Addr) Sub(b Addr) (Addr, error) {
	if b > a {
		return 0, utils.MakeError(ErrUnderflow, "%v - %v", a, b)
	}

	return a - b, nil
}

// String formats the address as 0x followed by 16 lowercase hex digits
func (a Addr) String() string {
	return utils.FormatUintHex(uint64(a), 16)
}
