package demangler

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangle recovers the source-level name from a mangled linker name. Names
// the demangler does not understand come back unchanged. Mach-O images prefix
// symbols with an extra underscore, so a second attempt is made without it.
func Demangle(name string) string {
	if filtered := demangle.Filter(name); filtered != name {
		return filtered
	}

	if trimmed, ok := strings.CutPrefix(name, "_"); ok {
		if filtered := demangle.Filter(trimmed); filtered != trimmed {
			return filtered
		}
	}

	return name
}
