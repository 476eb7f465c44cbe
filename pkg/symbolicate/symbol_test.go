package symbolicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolFormat(t *testing.T) {
	withSource := Symbol{
		Addr: 0x100001020,
		Name: "foo",
		Loc:  SymbolicLoc{Source: &SourceLoc{File: "/src/a.c", Line: 42, Column: 7}},
	}

	t.Run("base name by default", func(t *testing.T) {
		assert.Equal(t, "foo (in app) (a.c:42)", withSource.Format("app", false))
	})

	t.Run("full path", func(t *testing.T) {
		assert.Equal(t, "foo (in app) (/src/a.c:42)", withSource.Format("app", true))
	})

	t.Run("known function without source", func(t *testing.T) {
		sym := Symbol{Addr: 0x1000, Name: "foo", Loc: SymbolicLoc{}}
		assert.Equal(t, "foo (in app) (?)", sym.Format("app", false))
	})

	t.Run("symbol map fallback offset", func(t *testing.T) {
		sym := Symbol{Addr: 0x100001ff0, Name: "_start", Loc: ObjectOffset(16)}
		assert.Equal(t, "_start (in app) + 16", sym.Format("app", false))
	})

	t.Run("compiler generated", func(t *testing.T) {
		sym := Symbol{Name: "bar", Loc: SymbolicLoc{Source: generatedLoc("/src")}}
		assert.Equal(t, "bar (in app) (<compiler-generated>:0)", sym.Format("app", false))
		assert.Equal(t, "bar (in app) (/src/<compiler-generated>:0)", sym.Format("app", true))
	})
}

func TestSourceLocString(t *testing.T) {
	assert.Equal(t, "/src/a.c:42:7", SourceLoc{File: "/src/a.c", Line: 42, Column: 7}.String())
	assert.Equal(t, "/src/a.c:42", SourceLoc{File: "/src/a.c", Line: 42}.String())
}

func TestGeneratedLoc(t *testing.T) {
	loc := generatedLoc("/src")
	assert.Equal(t, "/src/<compiler-generated>", loc.File)
	assert.Zero(t, loc.Line)
	assert.Zero(t, loc.Column)
}
