package symbolicate

import (
	"debug/dwarf"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestEntryDump(t *testing.T) {
	color.NoColor = true

	entry := &dwarf.Entry{
		Offset: 0x42,
		Tag:    dwarf.TagSubprogram,
		Field: []dwarf.Field{
			{Attr: dwarf.AttrName, Val: "foo"},
			{Attr: dwarf.AttrLowpc, Val: uint64(0x100001000)},
		},
	}

	dump := EntryDump(entry)
	assert.Contains(t, dump, "<0x00042>")
	assert.Contains(t, dump, "Subprogram")
	assert.Contains(t, dump, "Name")
	assert.Contains(t, dump, `"foo"`)
	assert.Contains(t, dump, "0x0000000100001000")
}

func TestEntryDumpWithoutAttributes(t *testing.T) {
	color.NoColor = true

	dump := EntryDump(&dwarf.Entry{Offset: 0x10, Tag: dwarf.TagLexDwarfBlock})
	assert.Contains(t, dump, "<0x00010>")
}
