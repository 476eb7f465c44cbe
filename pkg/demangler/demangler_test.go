package demangler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemangle(t *testing.T) {
	t.Run("itanium", func(t *testing.T) {
		assert.Equal(t, "foo::bar()", Demangle("_ZN3foo3barEv"))
	})

	t.Run("mach-o underscore prefix", func(t *testing.T) {
		assert.Equal(t, "foo::bar()", Demangle("__ZN3foo3barEv"))
	})

	t.Run("plain C symbol passes through", func(t *testing.T) {
		assert.Equal(t, "_main", Demangle("_main"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", Demangle(""))
	})
}
