package symbolicate

// .debug_aranges decoding and compile-unit location
//
// The stdlib DWARF decoder assembles .debug_info but does not surface the
// .debug_aranges index, so the raw section bytes are decoded here. Each
// arange set carries the .debug_info offset of its compilation unit header
// plus (address, length) spans; the first set with a span containing the
// lookup address owns it. The matching unit header is then decoded just far
// enough to find its first DIE, which is where the stdlib reader can be
// seeked to.

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/image"
	"github.com/macsym/macsym/pkg/utils"
)

const dwarf64Marker = 0xffffffff

// DebugInfoOffset is a byte offset of a compilation unit header inside
// .debug_info
type DebugInfoOffset uint64

type arangeSpan struct {
	base   addr.Addr
	length addr.Addr
}

// contains reports whether the span covers a, failing on base+length
// wrap-around
func (s arangeSpan) contains(a addr.Addr) (bool, error) {
	end, err := s.base.Add(s.length)
	if err != nil {
		return false, utils.MakeError(ErrInvalidAddressRange, "%v + %v", s.base, s.length)
	}

	return a >= s.base && a < end, nil
}

type arangeSet struct {
	infoOffset DebugInfoOffset
	spans      []arangeSpan
}

// UnitLocator maps image-relative addresses to their owning compilation unit
type UnitLocator struct {
	sets  []arangeSet
	info  []byte
	order binary.ByteOrder
}

// NewUnitLocator decodes the image's .debug_aranges section
func NewUnitLocator(img *image.Image) (*UnitLocator, error) {
	sets, err := parseAranges(img.Section("__debug_aranges"), img.Endianness())
	if err != nil {
		return nil, err
	}

	return &UnitLocator{
		sets:  sets,
		info:  img.Section("__debug_info"),
		order: img.Endianness(),
	}, nil
}

// InfoOffset finds the .debug_info offset of the unit owning a. The sets are
// scanned in section order and the first containing span wins.
func (l *UnitLocator) InfoOffset(a addr.Addr) (DebugInfoOffset, error) {
	for _, set := range l.sets {
		for _, span := range set.spans {
			ok, err := span.contains(a)
			if err != nil {
				return 0, err
			}
			if ok {
				return set.infoOffset, nil
			}
		}
	}

	return 0, utils.MakeError(ErrNoDebugOffset, "%v", a)
}

// EntryOffset decodes the unit header at the given .debug_info offset and
// returns the offset of the unit's first DIE, where a DWARF reader seeks to
func (l *UnitLocator) EntryOffset(offset DebugInfoOffset) (dwarf.Offset, error) {
	c := &cursor{data: l.info, off: uint64(offset), order: l.order}

	dwarf64 := c.uint32() == dwarf64Marker
	if dwarf64 {
		c.uint64()
	}

	version := c.uint16()
	if version < 2 || version > 5 {
		return 0, utils.MakeError(image.ErrDwarfDecode,
			"unsupported unit version %d at offset %#x", version, uint64(offset))
	}

	if version >= 5 {
		c.uint8() // unit type
		c.uint8() // address size
		c.offsetField(dwarf64)
	} else {
		c.offsetField(dwarf64)
		c.uint8() // address size
	}

	if c.failed {
		return 0, utils.MakeError(image.ErrDwarfDecode,
			"truncated unit header at offset %#x", uint64(offset))
	}

	return dwarf.Offset(c.off), nil
}

// parseAranges decodes every arange set of the section
func parseAranges(data []byte, order binary.ByteOrder) ([]arangeSet, error) {
	var sets []arangeSet

	c := &cursor{data: data, order: order}
	for c.off < uint64(len(data)) && !c.failed {
		start := c.off

		length := uint64(c.uint32())
		dwarf64 := length == dwarf64Marker
		if dwarf64 {
			length = c.uint64()
		}
		end := c.off + length

		version := c.uint16()
		if version != 2 {
			return nil, utils.MakeError(image.ErrDwarfDecode,
				"unsupported aranges version %d at offset %#x", version, start)
		}

		infoOffset := DebugInfoOffset(c.offsetField(dwarf64))

		addressSize := uint64(c.uint8())
		if addressSize != 4 && addressSize != 8 {
			return nil, utils.MakeError(image.ErrDwarfDecode,
				"unsupported aranges address size %d", addressSize)
		}

		if segmentSize := c.uint8(); segmentSize != 0 {
			return nil, utils.MakeError(image.ErrDwarfDecode,
				"segmented aranges are not supported (segment size %d)", segmentSize)
		}

		// tuples start aligned to twice the address size, relative to the
		// set's first byte
		tuple := 2 * addressSize
		if misaligned := (c.off - start) % tuple; misaligned != 0 {
			c.skip(tuple - misaligned)
		}

		set := arangeSet{infoOffset: infoOffset}
		for c.off+tuple <= end && !c.failed {
			span := arangeSpan{
				base:   addr.Addr(c.address(addressSize)),
				length: addr.Addr(c.address(addressSize)),
			}

			if span.base.IsNil() && span.length.IsNil() {
				break
			}

			set.spans = append(set.spans, span)
		}

		sets = append(sets, set)
		c.off = end
	}

	if c.failed {
		return nil, utils.MakeError(image.ErrDwarfDecode, "truncated aranges section")
	}

	return sets, nil
}

// cursor is a bounds-checked big/little-endian byte reader. A read past the
// end sets failed and returns zero instead of panicking.
type cursor struct {
	data   []byte
	off    uint64
	order  binary.ByteOrder
	failed bool
}

func (c *cursor) take(n uint64) []byte {
	if c.failed || c.off+n > uint64(len(c.data)) {
		c.failed = true
		return nil
	}

	bytes := c.data[c.off : c.off+n]
	c.off += n
	return bytes
}

func (c *cursor) skip(n uint64) {
	c.take(n)
}

func (c *cursor) uint8() uint8 {
	if b := c.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (c *cursor) uint16() uint16 {
	if b := c.take(2); b != nil {
		return c.order.Uint16(b)
	}
	return 0
}

func (c *cursor) uint32() uint32 {
	if b := c.take(4); b != nil {
		return c.order.Uint32(b)
	}
	return 0
}

func (c *cursor) uint64() uint64 {
	if b := c.take(8); b != nil {
		return c.order.Uint64(b)
	}
	return 0
}

// offsetField reads a section offset, 4 bytes in DWARF32 and 8 in DWARF64
func (c *cursor) offsetField(dwarf64 bool) uint64 {
	if dwarf64 {
		return c.uint64()
	}
	return uint64(c.uint32())
}

func (c *cursor) address(size uint64) uint64 {
	switch size {
	case 4:
		return uint64(c.uint32())
	case 8:
		return c.uint64()
	}

	c.failed = true
	return 0
}

func (s arangeSpan) String() string {
	return fmt.Sprintf("[%v, %v+%v)", s.base, s.base, s.length)
}
