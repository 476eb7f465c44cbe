package image

// Mach-O image adapter
//
// This file surfaces the pieces of a Mach-O binary image that address
// symbolication needs:
//
//   - the __TEXT segment vmaddr, the reference point all base modes use
//   - the LC_UUID load command (dSYM matching, -printHeader output)
//   - named section bytes, with transparent zlib decompression of the
//     "__zdebug_*" flavors some toolchains emit
//   - a sorted address -> symbol map built from the symbol table
//   - the assembled DWARF debug data
//
// Fat images are sliced by the requested architecture before anything else is
// read; a thin image must itself match the requested architecture.

import (
	"bytes"
	"compress/zlib"
	"debug/dwarf"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/utils"
)

var (
	ErrImageParse    = errors.New("cannot parse Mach-O image")
	ErrNoTextSegment = errors.New("vmaddr: __TEXT segment not found")
	ErrNoUUID        = errors.New("object has no UUID")
	ErrDwarfDecode   = errors.New("cannot decode DWARF data")
)

const lcUUID = 0x1b

// Image is one architecture slice of an opened Mach-O file
type Image struct {
	*macho.File

	path string
	arch Arch
	fat  *macho.FatFile
	file *os.File
	syms *SymbolMap
}

// Open opens and parses the Mach-O file at path and selects the given
// architecture slice
func Open(path string, arch Arch) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image %s: %w", path, err)
	}

	img, err := parse(file, arch)
	if err != nil {
		file.Close()
		return nil, utils.MakeError(ErrImageParse, "%s: %v", path, err)
	}

	img.path = path
	img.file = file
	return img, nil
}

func parse(r io.ReaderAt, arch Arch) (*Image, error) {
	magic := make([]byte, 4)
	if _, err := r.ReadAt(magic, 0); err != nil {
		return nil, fmt.Errorf("cannot read magic: %w", err)
	}

	if binary.BigEndian.Uint32(magic) == macho.MagicFat {
		fat, err := macho.NewFatFile(r)
		if err != nil {
			return nil, err
		}

		for _, slice := range fat.Arches {
			if slice.Cpu == arch.Cpu && slice.SubCpu&cpuSubTypeMask == arch.SubCpu {
				return &Image{File: slice.File, arch: arch, fat: fat}, nil
			}
		}

		fat.Close()
		return nil, fmt.Errorf("fat image has no %s slice", arch.Name)
	}

	file, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}

	if file.Cpu != arch.Cpu || file.SubCpu&cpuSubTypeMask != arch.SubCpu {
		file.Close()
		return nil, fmt.Errorf("image is %v(%d), not %s", file.Cpu, file.SubCpu, arch.Name)
	}

	return &Image{File: file, arch: arch}, nil
}

// Path returns the file the image was opened from
func (i *Image) Path() string {
	return i.path
}

// Arch returns the architecture slice the image was opened as
func (i *Image) Arch() Arch {
	return i.arch
}

// VMAddr returns the load address of the __TEXT segment
func (i *Image) VMAddr() (addr.Addr, error) {
	for _, load := range i.Loads {
		if segment, ok := load.(*macho.Segment); ok && segment.Name == "__TEXT" {
			return addr.Addr(segment.Addr), nil
		}
	}

	return 0, ErrNoTextSegment
}

// UUID returns the image UUID from the LC_UUID load command
func (i *Image) UUID() ([16]byte, error) {
	var uuid [16]byte

	for _, load := range i.Loads {
		raw := load.Raw()
		if len(raw) >= 24 && i.ByteOrder.Uint32(raw[0:4]) == lcUUID {
			copy(uuid[:], raw[8:24])
			return uuid, nil
		}
	}

	return uuid, ErrNoUUID
}

// Endianness returns the byte order the image was linked with
func (i *Image) Endianness() binary.ByteOrder {
	return i.ByteOrder
}

// Section returns the uncompressed bytes of the named debug section, trying
// the "__zdebug_" spelling as well. Missing sections yield an empty slice.
func (i *Image) Section(name string) []byte {
	compressed := strings.Replace(name, "__debug_", "__zdebug_", 1)

	for _, section := range i.Sections {
		if section.Name == name || section.Name == compressed {
			data, err := sectionData(section)
			if err != nil {
				return nil
			}
			return data
		}
	}

	return nil
}

// SymbolMap builds (once) and returns the sorted symbol-table map
func (i *Image) SymbolMap() *SymbolMap {
	if i.syms == nil {
		var symbols []Symbol

		if i.Symtab != nil {
			for _, sym := range i.Symtab.Syms {
				symbols = append(symbols, Symbol{Addr: addr.Addr(sym.Value), Name: sym.Name})
			}
		}

		i.syms = NewSymbolMap(symbols)
	}

	return i.syms
}

// DWARF assembles the debug sections into decoded DWARF data
func (i *Image) DWARF() (*dwarf.Data, error) {
	data, err := i.File.DWARF()
	if err != nil {
		return nil, utils.MakeError(ErrDwarfDecode, "%v", err)
	}

	return data, nil
}

// Close releases the parsed image and the underlying file
func (i *Image) Close() error {
	if i.fat != nil {
		i.fat.Close()
	} else if i.File != nil {
		i.File.Close()
	}

	if i.file != nil {
		return i.file.Close()
	}

	return nil
}

// FormatUUID renders an image UUID the way atos -printHeader does,
// hyphenated uppercase
func FormatUUID(uuid [16]byte) string {
	return strings.ToUpper(fmt.Sprintf("%x-%x-%x-%x-%x",
		uuid[0:4], uuid[4:6], uuid[6:8], uuid[8:10], uuid[10:16]))
}

// sectionData reads a section, inflating the ZLIB payload "__zdebug_*"
// sections carry
func sectionData(s *macho.Section) ([]byte, error) {
	data, err := s.Data()
	if err != nil && uint64(len(data)) < s.Size {
		return nil, fmt.Errorf("cannot read section %s: %w", s.Name, err)
	}

	if len(data) >= 12 && string(data[:4]) == "ZLIB" {
		size := binary.BigEndian.Uint64(data[4:12])
		inflated := make([]byte, size)

		r, err := zlib.NewReader(bytes.NewReader(data[12:]))
		if err != nil {
			return nil, err
		}
		defer r.Close()

		if _, err = io.ReadFull(r, inflated); err != nil {
			return nil, fmt.Errorf("cannot inflate section %s: %w", s.Name, err)
		}
		data = inflated
	}

	return data, nil
}
