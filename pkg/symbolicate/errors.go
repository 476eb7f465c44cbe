package symbolicate

import "errors"

// Resolution failure kinds. The dispatcher recovers from ErrAddrNotFound and
// ErrNoDebugOffset through the symbol-map fallback; everything else is
// reported on the address's output line.
var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrAddrNotFound        = errors.New("address not found")
	ErrNoDebugOffset       = errors.New("no debug info offset for address")
	ErrSymbolMissing       = errors.New("no symbol for address")
	ErrLineInfoMissing     = errors.New("no line info for address")
	ErrCompDirMissing      = errors.New("compilation unit has no compilation directory")
	ErrLineProgramMissing  = errors.New("compilation unit has no line program")
	ErrRefOutOfBounds      = errors.New("debug info reference offset out of bounds")
	ErrInvalidAddressRange = errors.New("invalid address range")
)
