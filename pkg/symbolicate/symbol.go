package symbolicate

import (
	"fmt"
	"path/filepath"

	"github.com/macsym/macsym/pkg/addr"
)

// compilerGenerated is the pseudo file name for artificial frames
const compilerGenerated = "<compiler-generated>"

// SourceLoc is a resolved source position. Line 0 marks compiler-generated
// code and column 0 the left edge or an unknown column.
type SourceLoc struct {
	File   string
	Line   int
	Column int
}

func (l SourceLoc) String() string {
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// generatedLoc builds the location emitted for artificial frames
func generatedLoc(compDir string) *SourceLoc {
	return &SourceLoc{File: filepath.Join(compDir, compilerGenerated)}
}

// Loc is where a symbol's position information came from: DWARF source info
// (SymbolicLoc) or a raw offset past a symbol-table entry (ObjectOffset)
type Loc interface {
	isLoc()
}

// SymbolicLoc carries DWARF source info; a nil Source means the function is
// known but its file and line are not
type SymbolicLoc struct {
	Source *SourceLoc
}

func (SymbolicLoc) isLoc() {}

// ObjectOffset is the distance from the nearest symbol-table entry, used by
// the symbol-map fallback
type ObjectOffset addr.Addr

func (ObjectOffset) isLoc() {}

// Symbol is one resolved frame for an input address. Symbols own their
// strings; nothing borrowed from the mapped image outlives resolution.
type Symbol struct {
	Addr addr.Addr
	Name string
	Loc  Loc
}

// Format renders the symbol as an atos output line
func (s Symbol) Format(imageFile string, fullPath bool) string {
	switch loc := s.Loc.(type) {
	case ObjectOffset:
		return fmt.Sprintf("%s (in %s) + %d", s.Name, imageFile, uint64(loc))

	case SymbolicLoc:
		if loc.Source == nil {
			return fmt.Sprintf("%s (in %s) (?)", s.Name, imageFile)
		}

		file := loc.Source.File
		if !fullPath {
			file = filepath.Base(file)
		}
		return fmt.Sprintf("%s (in %s) (%s:%d)", s.Name, imageFile, file, loc.Source.Line)

	default:
		return fmt.Sprintf("%s (in %s) (?)", s.Name, imageFile)
	}
}
