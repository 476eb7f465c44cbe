package symbolicate

import (
	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/utils"
)

// Translator converts observed runtime addresses into image-relative lookup
// addresses by applying the signed delta the base mode implies:
//
//	LoadAddr(L)  delta = -(L - vmaddr), rejected when L < vmaddr
//	Slide(s)     delta = -s
//	Offset       delta = +vmaddr
type Translator struct {
	delta    addr.Addr
	negative bool
}

// NewTranslator derives the translation delta from the base mode and the
// image's __TEXT vmaddr
func NewTranslator(base BaseMode, vmaddr addr.Addr) (*Translator, error) {
	switch base.Kind {
	case BaseLoadAddr:
		slide, err := base.Value.Sub(vmaddr)
		if err != nil {
			return nil, utils.MakeError(ErrInvalidAddress,
				"Invalid load address: %v is below the image vmaddr %v", base.Value, vmaddr)
		}
		return &Translator{delta: slide, negative: true}, nil

	case BaseSlide:
		return &Translator{delta: base.Value, negative: true}, nil

	default:
		return &Translator{delta: vmaddr}, nil
	}
}

// Translate applies the delta to one observed address
func (t *Translator) Translate(observed addr.Addr) (addr.Addr, error) {
	var (
		translated addr.Addr
		err        error
	)

	if t.negative {
		translated, err = observed.Sub(t.delta)
	} else {
		translated, err = observed.Add(t.delta)
	}

	if err != nil {
		return 0, utils.MakeError(ErrInvalidAddress, "%v", err)
	}

	return translated, nil
}

// TranslateAll translates every observed address, preserving order
func (t *Translator) TranslateAll(observed []addr.Addr) ([]addr.Addr, error) {
	translated := make([]addr.Addr, len(observed))

	for i, a := range observed {
		var err error
		if translated[i], err = t.Translate(a); err != nil {
			return nil, err
		}
	}

	return translated, nil
}
