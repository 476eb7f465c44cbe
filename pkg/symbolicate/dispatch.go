package symbolicate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/image"
	"github.com/macsym/macsym/pkg/utils"
)

// AddrResolver resolves an image-relative address into its symbols
type AddrResolver interface {
	Resolve(a addr.Addr, includeInlined bool) ([]Symbol, error)
}

// Symbolicator ties DWARF resolution to the symbol-map fallback and formats
// one output group per input address
type Symbolicator struct {
	resolver AddrResolver
	symbols  *image.SymbolMap
	demangle func(string) string
	log      *slog.Logger
}

// NewSymbolicator wires a resolver and a symbol map. A nil resolver answers
// from the symbol table alone; a nil demangle function keeps raw names.
func NewSymbolicator(resolver AddrResolver, symbols *image.SymbolMap, demangle func(string) string) *Symbolicator {
	if demangle == nil {
		demangle = func(name string) string { return name }
	}

	return &Symbolicator{
		resolver: resolver,
		symbols:  symbols,
		demangle: demangle,
		log:      slog.Default(),
	}
}

// Lookup resolves one image-relative address. When DWARF does not describe
// the address the symbol map answers instead; a miss there too is final.
func (s *Symbolicator) Lookup(a addr.Addr, includeInlined bool) ([]Symbol, error) {
	err := utils.MakeError(ErrNoDebugOffset, "no debug data loaded")
	if s.resolver != nil {
		var symbols []Symbol
		if symbols, err = s.resolver.Resolve(a, includeInlined); err == nil {
			return symbols, nil
		}
	}

	if !errors.Is(err, ErrAddrNotFound) && !errors.Is(err, ErrNoDebugOffset) {
		return nil, err
	}

	s.log.Debug("no DWARF coverage, trying the symbol map", "addr", a, "reason", err)

	entry, ok := s.symbols.Lookup(a)
	if !ok {
		return nil, utils.MakeError(ErrAddrNotFound, "%v", a)
	}

	offset, err := a.Sub(entry.Addr)
	if err != nil {
		return nil, utils.MakeError(ErrAddrNotFound, "%v", a)
	}

	return []Symbol{{
		Addr: entry.Addr,
		Name: s.demangle(entry.Name),
		Loc:  ObjectOffset(offset),
	}}, nil
}

// Run symbolicates every translated address in order, writing one group of
// output lines per address. Addresses nothing describes print back as bare
// hex; per-address resolution errors print on the address's line and the
// batch continues.
func (s *Symbolicator) Run(w io.Writer, ctx *Context, addrs []addr.Addr) {
	imageFile := ctx.ObjectPath
	if !ctx.ShowFullPath {
		imageFile = filepath.Base(imageFile)
	}

	for _, a := range addrs {
		symbols, err := s.Lookup(a, ctx.IncludeInlined)

		switch {
		case err == nil:
			for _, line := range utils.Map(symbols, func(sym Symbol) string {
				return sym.Format(imageFile, ctx.ShowFullPath)
			}) {
				fmt.Fprintln(w, line)
			}

		case errors.Is(err, ErrAddrNotFound):
			fmt.Fprintln(w, a)

		default:
			fmt.Fprintln(w, err)
		}

		if ctx.IncludeInlined {
			fmt.Fprint(w, ctx.Delimiter)
		}
	}
}

// PrintHeader writes the -printHeader line: UUID, arch padded to 8 columns,
// image path
func PrintHeader(w io.Writer, img *image.Image) error {
	uuid, err := img.UUID()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "    %s   %-8s %s\n", image.FormatUUID(uuid), img.Arch().Name, img.Path())
	return err
}
