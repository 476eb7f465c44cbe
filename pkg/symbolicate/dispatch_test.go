package symbolicate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/demangler"
	"github.com/macsym/macsym/pkg/image"
	"github.com/macsym/macsym/pkg/utils"
)

// stubResolver resolves from a fixed table and fails everything else with
// the given error
type stubResolver struct {
	symbols map[addr.Addr][]Symbol
	err     error
}

func (r *stubResolver) Resolve(a addr.Addr, includeInlined bool) ([]Symbol, error) {
	if symbols, ok := r.symbols[a]; ok {
		return symbols, nil
	}

	return nil, utils.MakeError(r.err, "%v", a)
}

func testSymbolMap() *image.SymbolMap {
	return image.NewSymbolMap([]image.Symbol{
		{Addr: 0x100001ff0, Name: "_start"},
	})
}

func TestLookupFallback(t *testing.T) {
	t.Run("arange miss falls back to the symbol map", func(t *testing.T) {
		s := NewSymbolicator(&stubResolver{err: ErrNoDebugOffset}, testSymbolMap(), nil)

		symbols, err := s.Lookup(0x100002000, false)
		require.NoError(t, err)
		require.Len(t, symbols, 1)
		assert.Equal(t, "_start", symbols[0].Name)
		assert.Equal(t, addr.Addr(0x100001ff0), symbols[0].Addr)
		assert.Equal(t, ObjectOffset(16), symbols[0].Loc)
	})

	t.Run("subprogram miss falls back too", func(t *testing.T) {
		s := NewSymbolicator(&stubResolver{err: ErrAddrNotFound}, testSymbolMap(), nil)

		_, err := s.Lookup(0x100002000, false)
		assert.NoError(t, err)
	})

	t.Run("fallback miss is final", func(t *testing.T) {
		s := NewSymbolicator(&stubResolver{err: ErrNoDebugOffset}, testSymbolMap(), nil)

		_, err := s.Lookup(0x100000010, false)
		assert.ErrorIs(t, err, ErrAddrNotFound)
	})

	t.Run("other errors pass through without fallback", func(t *testing.T) {
		s := NewSymbolicator(&stubResolver{err: ErrLineInfoMissing}, testSymbolMap(), nil)

		_, err := s.Lookup(0x100002000, false)
		assert.ErrorIs(t, err, ErrLineInfoMissing)
	})

	t.Run("fallback names are demangled", func(t *testing.T) {
		symbols := image.NewSymbolMap([]image.Symbol{{Addr: 0x1000, Name: "__ZN3foo3barEv"}})
		s := NewSymbolicator(&stubResolver{err: ErrNoDebugOffset}, symbols, demangler.Demangle)

		resolved, err := s.Lookup(0x1008, false)
		require.NoError(t, err)
		assert.Equal(t, "foo::bar()", resolved[0].Name)
	})

	t.Run("no resolver means symbol table only", func(t *testing.T) {
		s := NewSymbolicator(nil, testSymbolMap(), nil)

		resolved, err := s.Lookup(0x100002000, false)
		require.NoError(t, err)
		assert.Equal(t, "_start", resolved[0].Name)
	})
}

func TestRun(t *testing.T) {
	// innermost frame carries the executing line, outer frames their
	// callee's call-site
	resolver := &stubResolver{
		err: ErrNoDebugOffset,
		symbols: map[addr.Addr][]Symbol{
			0x100001020: {
				{Addr: 0x100001020, Name: "baz", Loc: SymbolicLoc{Source: &SourceLoc{File: "/src/a.c", Line: 42}}},
				{Addr: 0x100001020, Name: "bar", Loc: SymbolicLoc{Source: &SourceLoc{File: "/src/a.c", Line: 200}}},
				{Addr: 0x100001020, Name: "foo", Loc: SymbolicLoc{Source: &SourceLoc{File: "/src/a.c", Line: 100}}},
			},
			0x100001040: {
				{Addr: 0x100001040, Name: "foo", Loc: SymbolicLoc{Source: &SourceLoc{File: "/src/a.c", Line: 42}}},
			},
		},
	}

	context := &Context{
		ObjectPath: "/tmp/app",
		Delimiter:  "\n",
	}

	t.Run("single frame without inlining", func(t *testing.T) {
		var out strings.Builder
		s := NewSymbolicator(resolver, testSymbolMap(), nil)
		s.Run(&out, context, []addr.Addr{0x100001040})

		assert.Equal(t, "foo (in app) (a.c:42)\n", out.String())
	})

	t.Run("inline expansion with delimiters", func(t *testing.T) {
		inlined := *context
		inlined.IncludeInlined = true
		inlined.ShowFullPath = true

		var out strings.Builder
		s := NewSymbolicator(resolver, testSymbolMap(), nil)
		s.Run(&out, &inlined, []addr.Addr{0x100001020})

		assert.Equal(t,
			"baz (in /tmp/app) (/src/a.c:42)\n"+
				"bar (in /tmp/app) (/src/a.c:200)\n"+
				"foo (in /tmp/app) (/src/a.c:100)\n"+
				"\n",
			out.String())
	})

	t.Run("fallback line", func(t *testing.T) {
		var out strings.Builder
		s := NewSymbolicator(resolver, testSymbolMap(), nil)
		s.Run(&out, context, []addr.Addr{0x100002000})

		assert.Equal(t, "_start (in app) + 16\n", out.String())
	})

	t.Run("unknown address prints bare hex", func(t *testing.T) {
		var out strings.Builder
		s := NewSymbolicator(resolver, testSymbolMap(), nil)
		s.Run(&out, context, []addr.Addr{0x100000010})

		assert.Equal(t, "0x0000000100000010\n", out.String())
	})

	t.Run("per-address errors keep the batch going", func(t *testing.T) {
		failing := &stubResolver{err: ErrLineInfoMissing}

		var out strings.Builder
		s := NewSymbolicator(failing, testSymbolMap(), nil)
		s.Run(&out, context, []addr.Addr{0x100001020, 0x100002000})

		lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "no line info for address")
		assert.Contains(t, lines[1], "no line info for address")
	})
}
