package symbolicate

import (
	"github.com/macsym/macsym/pkg/addr"
)

// Mode selects what one invocation does
type Mode int

const (
	ModeSymbolicate Mode = iota
	ModePrintUUID
)

// BaseKind tags how observed addresses relate to the image's link addresses
type BaseKind int

const (
	// BaseOffset treats inputs as offsets from the image vmaddr
	BaseOffset BaseKind = iota
	// BaseLoadAddr treats inputs as runtime addresses in an image loaded at
	// the given address
	BaseLoadAddr
	// BaseSlide treats inputs as runtime addresses displaced by the given
	// loader slide
	BaseSlide
)

// BaseMode is the user-supplied base information for address translation
type BaseMode struct {
	Kind  BaseKind
	Value addr.Addr
}

func OffsetBase() BaseMode {
	return BaseMode{Kind: BaseOffset}
}

func LoadAddrBase(loadAddr addr.Addr) BaseMode {
	return BaseMode{Kind: BaseLoadAddr, Value: loadAddr}
}

func SlideBase(slide addr.Addr) BaseMode {
	return BaseMode{Kind: BaseSlide, Value: slide}
}

// Context is the immutable input bundle of one invocation
type Context struct {
	ObjectPath     string
	Arch           string
	Addrs          []addr.Addr
	Base           BaseMode
	IncludeInlined bool
	ShowFullPath   bool
	Delimiter      string
	Mode           Mode
}
