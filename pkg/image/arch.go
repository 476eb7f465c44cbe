package image

import (
	"debug/macho"
	"errors"
	"sort"
	"strings"

	"github.com/macsym/macsym/pkg/utils"
)

var ErrUnknownArch = errors.New("unsupported architecture")

// Mach-O cpu subtype values, see the LLVM BinaryFormat MachO headers
const (
	cpuSubTypeI386All  = 0x03
	cpuSubTypeX8664All = 0x03
	cpuSubTypeX8664H   = 0x08

	cpuSubTypeArmAll = 0x00
	cpuSubTypeArmV6  = 0x06
	cpuSubTypeArmV7  = 0x09
	cpuSubTypeArmV7s = 0x0b

	cpuSubTypeArm64All = 0x00
	cpuSubTypeArm64E   = 0x02
)

// capability bits stored in the high byte of a cpu subtype
const cpuSubTypeMask = 0x00ffffff

// Arch selects one slice of a (possibly fat) Mach-O image
type Arch struct {
	Name   string
	Cpu    macho.Cpu
	SubCpu uint32
}

var archSet = map[string]Arch{
	"i386":    {Name: "i386", Cpu: macho.Cpu386, SubCpu: cpuSubTypeI386All},
	"x86_64":  {Name: "x86_64", Cpu: macho.CpuAmd64, SubCpu: cpuSubTypeX8664All},
	"x86_64h": {Name: "x86_64h", Cpu: macho.CpuAmd64, SubCpu: cpuSubTypeX8664H},
	"armv6":   {Name: "armv6", Cpu: macho.CpuArm, SubCpu: cpuSubTypeArmV6},
	"armv7":   {Name: "armv7", Cpu: macho.CpuArm, SubCpu: cpuSubTypeArmV7},
	"armv7s":  {Name: "armv7s", Cpu: macho.CpuArm, SubCpu: cpuSubTypeArmV7s},
	"arm":     {Name: "arm", Cpu: macho.CpuArm, SubCpu: cpuSubTypeArmAll},
	"arm64":   {Name: "arm64", Cpu: macho.CpuArm64, SubCpu: cpuSubTypeArm64All},
	"arm64e":  {Name: "arm64e", Cpu: macho.CpuArm64, SubCpu: cpuSubTypeArm64E},
}

// ParseArch resolves an architecture tag like "arm64" or "x86_64"
func ParseArch(tag string) (Arch, error) {
	arch, ok := archSet[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Arch{}, utils.MakeError(ErrUnknownArch, "%q", tag)
	}

	return arch, nil
}

// SupportedArchs lists the known architecture tags, sorted
func SupportedArchs() []string {
	tags := utils.Keys(archSet)
	sort.Strings(tags)
	return tags
}
