package symbolicate

import (
	"debug/dwarf"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/macsym/macsym/pkg/utils"
)

// Color definitions for the verbose DIE dump
var (
	dumpOffset = color.New(color.FgCyan)
	dumpTag    = color.New(color.FgYellow, color.Bold)
	dumpAttr   = color.New(color.FgGreen)
	dumpValue  = color.New(color.FgWhite)
)

// EntryDump renders one DIE with its attributes for verbose tracing
func EntryDump(entry *dwarf.Entry) string {
	var builder strings.Builder

	builder.WriteString(dumpOffset.Sprintf("<0x%05x>", uint64(entry.Offset)))
	builder.WriteByte(' ')
	builder.WriteString(dumpTag.Sprint(entry.Tag))

	if len(entry.Field) == 0 {
		return builder.String()
	}

	width := utils.Max(utils.Map(entry.Field, func(field dwarf.Field) int {
		return len(field.Attr.String())
	}))

	for _, field := range entry.Field {
		builder.WriteString("\n  ")
		builder.WriteString(dumpAttr.Sprintf("%-*s", width, field.Attr))
		builder.WriteByte(' ')
		builder.WriteString(dumpValue.Sprint(formatFieldValue(field)))
	}

	return builder.String()
}

// Tracer returns a trace callback writing colorized DIE dumps to w
func Tracer(w io.Writer) func(*dwarf.Entry) {
	return func(entry *dwarf.Entry) {
		fmt.Fprintln(w, EntryDump(entry))
	}
}

func formatFieldValue(field dwarf.Field) string {
	switch value := field.Val.(type) {
	case string:
		return fmt.Sprintf("%q", value)
	case uint64:
		return utils.FormatUintHex(value, 16)
	case dwarf.Offset:
		return fmt.Sprintf("ref <%#x>", uint64(value))
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(value))
	default:
		return fmt.Sprint(value)
	}
}
