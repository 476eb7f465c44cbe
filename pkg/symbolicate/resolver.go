package symbolicate

// DWARF address resolution
//
// Resolution walks the DIE tree of the compilation unit owning an address:
//
//   1. the unit locator turns the address into the unit's first-DIE offset
//   2. a depth-first walk finds the subprogram containing the address
//   3. with inline expansion on, the walk continues through the subprogram's
//      children collecting the inlined subroutines covering the address; the
//      chain is discovered outermost first
//   4. each frame gets a name through the linkage-name / abstract-origin /
//      name attribute cascade (chasing DIE references, also across units) and
//      a source location: the innermost frame carries the last matching
//      line-program row (the line executing at the address), every outer
//      frame carries the call-site attributes of its callee (the place where
//      that call happens)
//
// Emission order is innermost inline first, concrete subprogram last.

import (
	"debug/dwarf"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/image"
	"github.com/macsym/macsym/pkg/utils"
)

// maxRefDepth bounds attribute-reference chasing so that cyclic
// abstract-origin/specification chains terminate
const maxRefDepth = 16

// Resolver resolves image-relative addresses against DWARF debug data
type Resolver struct {
	data     *dwarf.Data
	locator  *UnitLocator
	demangle func(string) string
	log      *slog.Logger
	trace    func(*dwarf.Entry)
}

// NewResolver builds a resolver over decoded DWARF data. The demangle
// function may be nil to keep raw linkage names.
func NewResolver(data *dwarf.Data, locator *UnitLocator, demangle func(string) string) *Resolver {
	if demangle == nil {
		demangle = func(name string) string { return name }
	}

	return &Resolver{
		data:     data,
		locator:  locator,
		demangle: demangle,
		log:      slog.Default(),
	}
}

// SetTrace installs a callback invoked with every DIE the walk visits
func (r *Resolver) SetTrace(trace func(*dwarf.Entry)) {
	r.trace = trace
}

// Resolve produces the symbols for one image-relative address, innermost
// inlined frame first, concrete subprogram last
func (r *Resolver) Resolve(a addr.Addr, includeInlined bool) ([]Symbol, error) {
	infoOffset, err := r.locator.InfoOffset(a)
	if err != nil {
		return nil, err
	}

	entryOffset, err := r.locator.EntryOffset(infoOffset)
	if err != nil {
		return nil, err
	}

	reader := r.data.Reader()
	reader.Seek(entryOffset)

	cu, err := reader.Next()
	if err != nil || cu == nil || cu.Tag != dwarf.TagCompileUnit {
		return nil, utils.MakeError(image.ErrDwarfDecode,
			"no compile unit at offset %#x (%v)", uint64(entryOffset), err)
	}

	compDir, _ := cu.Val(dwarf.AttrCompDir).(string)
	if compDir == "" {
		return nil, utils.MakeError(ErrCompDirMissing, "unit at offset %#x for %v", uint64(infoOffset), a)
	}

	lines, err := r.data.LineReader(cu)
	if err != nil {
		return nil, utils.MakeError(image.ErrDwarfDecode, "%v", err)
	}
	if lines == nil {
		return nil, utils.MakeError(ErrLineProgramMissing, "%v", a)
	}

	subprogram, err := r.findSubprogram(reader, a)
	if err != nil {
		return nil, err
	}

	var chain []*dwarf.Entry
	if includeInlined && subprogram.Children {
		if chain, err = r.inlineChain(reader, a); err != nil {
			return nil, err
		}
	}

	r.log.Debug("resolved subprogram",
		"addr", a, "unit", compDir, "inlined", len(chain))

	source, err := r.lineRow(a, lines, compDir)
	if err != nil {
		return nil, err
	}

	return r.buildSymbols(a, subprogram, chain, source, func(entry *dwarf.Entry) *SourceLoc {
		return r.callSiteLoc(entry, compDir, lines)
	})
}

// buildSymbols assembles the output frames, innermost first. The innermost
// frame carries the line-program row; every outer frame carries the
// call-site of its callee, so each printed file:line names where that call
// happens; the concrete subprogram comes last.
func (r *Resolver) buildSymbols(a addr.Addr, subprogram *dwarf.Entry, chain []*dwarf.Entry, rowLoc *SourceLoc, callSite func(*dwarf.Entry) *SourceLoc) ([]Symbol, error) {
	symbols := make([]Symbol, 0, len(chain)+1)

	if len(chain) == 0 {
		name, err := r.entryName(subprogram, a)
		if err != nil {
			return nil, err
		}

		return append(symbols, Symbol{Addr: a, Name: name, Loc: SymbolicLoc{Source: rowLoc}}), nil
	}

	name, err := r.entryName(chain[len(chain)-1], a)
	if err != nil {
		return nil, err
	}
	symbols = append(symbols, Symbol{Addr: a, Name: name, Loc: SymbolicLoc{Source: rowLoc}})

	for i := len(chain) - 1; i >= 1; i-- {
		if name, err = r.entryName(chain[i-1], a); err != nil {
			return nil, err
		}

		symbols = append(symbols, Symbol{Addr: a, Name: name, Loc: SymbolicLoc{Source: callSite(chain[i])}})
	}

	if name, err = r.entryName(subprogram, a); err != nil {
		return nil, err
	}

	return append(symbols, Symbol{Addr: a, Name: name, Loc: SymbolicLoc{Source: callSite(chain[0])}}), nil
}

// findSubprogram walks the unit depth first until a subprogram containing a
// is found. Reaching the next unit or the end of the section means the
// address is not described here.
func (r *Resolver) findSubprogram(reader *dwarf.Reader, a addr.Addr) (*dwarf.Entry, error) {
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, utils.MakeError(image.ErrDwarfDecode, "%v", err)
		}

		if entry == nil || entry.Tag == dwarf.TagCompileUnit || entry.Tag == dwarf.TagPartialUnit {
			return nil, utils.MakeError(ErrAddrNotFound, "%v", a)
		}

		if r.trace != nil {
			r.trace(entry)
		}

		if entry.Tag == dwarf.TagSubprogram && r.contains(entry, a) {
			return entry, nil
		}
	}
}

// inlineChain continues the walk through the subprogram's children and
// collects the inlined subroutines covering a, outermost first. The depth
// counter tracks nesting below the subprogram; once it drops past zero the
// walk is back among the subprogram's siblings.
func (r *Resolver) inlineChain(reader *dwarf.Reader, a addr.Addr) ([]*dwarf.Entry, error) {
	var chain []*dwarf.Entry

	depth := 0
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, utils.MakeError(image.ErrDwarfDecode, "%v", err)
		}
		if entry == nil {
			break
		}

		if entry.Tag == 0 {
			depth--
			if depth < 0 {
				break
			}
			continue
		}

		if r.trace != nil {
			r.trace(entry)
		}

		if entry.Tag == dwarf.TagInlinedSubroutine && r.contains(entry, a) {
			chain = append(chain, entry)
		}

		if entry.Children {
			depth++
		}
	}

	return chain, nil
}

// contains tests whether the DIE's code ranges cover a: DW_AT_low_pc with a
// DW_AT_high_pc that is either an absolute end address or a length, else a
// DW_AT_ranges range list. Both bounds are half open.
func (r *Resolver) contains(entry *dwarf.Entry, a addr.Addr) bool {
	if low, ok := entry.Val(dwarf.AttrLowpc).(uint64); ok {
		switch high := entry.Val(dwarf.AttrHighpc).(type) {
		case uint64:
			return uint64(a) >= low && uint64(a) < high
		case int64:
			return uint64(a) >= low && uint64(a) < low+uint64(high)
		}
	}

	if entry.Val(dwarf.AttrRanges) == nil {
		return false
	}

	ranges, err := r.data.Ranges(entry)
	if err != nil {
		r.log.Debug("unreadable range list", "addr", a, "err", err)
		return false
	}

	for _, rng := range ranges {
		if uint64(a) >= rng[0] && uint64(a) < rng[1] {
			return true
		}
	}

	return false
}

// entryName resolves the demangled symbol name of a frame through the
// attribute cascade
func (r *Resolver) entryName(entry *dwarf.Entry, a addr.Addr) (string, error) {
	name, err := r.symbolAttr(entry, a, 0)
	if err != nil {
		return "", err
	}

	return r.demangle(name), nil
}

// symbolAttr runs the DW_AT_linkage_name -> DW_AT_abstract_origin ->
// DW_AT_name cascade. Reference-valued attributes re-enter the cascade on
// the referenced DIE, wherever in .debug_info it lives.
func (r *Resolver) symbolAttr(entry *dwarf.Entry, a addr.Addr, depth int) (string, error) {
	if depth > maxRefDepth {
		return "", utils.MakeError(ErrSymbolMissing, "%v: reference chain too deep", a)
	}

	for _, at := range [...]dwarf.Attr{dwarf.AttrLinkageName, dwarf.AttrAbstractOrigin, dwarf.AttrName} {
		switch value := entry.Val(at).(type) {
		case string:
			return value, nil

		case dwarf.Offset:
			target, err := r.entryAt(value, a)
			if err != nil {
				return "", err
			}
			return r.symbolAttr(target, a, depth+1)
		}
	}

	return "", utils.MakeError(ErrSymbolMissing, "%v", a)
}

// entryAt reads the DIE at a global .debug_info offset with a fresh reader,
// leaving the caller's walk position untouched
func (r *Resolver) entryAt(offset dwarf.Offset, a addr.Addr) (*dwarf.Entry, error) {
	reader := r.data.Reader()
	reader.Seek(offset)

	entry, err := reader.Next()
	if err != nil || entry == nil {
		return nil, utils.MakeError(ErrRefOutOfBounds, "%v: offset %#x", a, uint64(offset))
	}

	return entry, nil
}

// callSiteLoc builds the location of the call an inlined DIE records, from
// its call-site attributes with the declaration attributes as fallback.
// Artificial frames, frames without any file attribute and file indices the
// line table cannot resolve come out as compiler generated.
func (r *Resolver) callSiteLoc(entry *dwarf.Entry, compDir string, lines *dwarf.LineReader) *SourceLoc {
	if artificial, _ := entry.Val(dwarf.AttrArtificial).(bool); artificial {
		return generatedLoc(compDir)
	}

	index, ok := entry.Val(dwarf.AttrCallFile).(int64)
	if !ok {
		if index, ok = entry.Val(dwarf.AttrDeclFile).(int64); !ok {
			return generatedLoc(compDir)
		}
	}

	files := lines.Files()
	if index < 0 || index >= int64(len(files)) || files[index] == nil {
		return generatedLoc(compDir)
	}

	file := files[index].Name
	if !filepath.IsAbs(file) && compDir != "" {
		file = filepath.Join(compDir, file)
	}

	line, ok := entry.Val(dwarf.AttrCallLine).(int64)
	if !ok {
		line, _ = entry.Val(dwarf.AttrDeclLine).(int64)
	}

	column, ok := entry.Val(dwarf.AttrCallColumn).(int64)
	if !ok {
		column, _ = entry.Val(dwarf.AttrDeclColumn).(int64)
	}

	return &SourceLoc{File: file, Line: int(line), Column: int(column)}
}

// lineRow feeds the unit's line program forward and keeps the last row
// matching a. The iterator is consumed; callers re-obtain it per lookup.
func (r *Resolver) lineRow(a addr.Addr, lines *dwarf.LineReader, compDir string) (*SourceLoc, error) {
	var (
		entry dwarf.LineEntry
		found *SourceLoc
	)

	for {
		err := lines.Next(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, utils.MakeError(image.ErrDwarfDecode, "%v", err)
		}

		if entry.Address != uint64(a) || entry.File == nil {
			continue
		}

		file := entry.File.Name
		if !filepath.IsAbs(file) && compDir != "" {
			file = filepath.Join(compDir, file)
		}

		found = &SourceLoc{File: file, Line: entry.Line, Column: entry.Column}
	}

	if found == nil {
		return nil, utils.MakeError(ErrLineInfoMissing, "%v", a)
	}

	return found, nil
}
