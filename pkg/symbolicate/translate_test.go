package symbolicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsym/macsym/pkg/addr"
)

const vmaddr = addr.Addr(0x100000000)

func TestTranslatorLoadAddr(t *testing.T) {
	t.Run("slid image", func(t *testing.T) {
		translator, err := NewTranslator(LoadAddrBase(0x104f60000), vmaddr)
		require.NoError(t, err)

		translated, err := translator.Translate(0x104f61020)
		require.NoError(t, err)
		assert.Equal(t, addr.Addr(0x100001020), translated)
	})

	t.Run("load address equal to vmaddr", func(t *testing.T) {
		translator, err := NewTranslator(LoadAddrBase(vmaddr), vmaddr)
		require.NoError(t, err)

		translated, err := translator.Translate(0x100001020)
		require.NoError(t, err)
		assert.Equal(t, addr.Addr(0x100001020), translated)
	})

	t.Run("load address below vmaddr", func(t *testing.T) {
		_, err := NewTranslator(LoadAddrBase(0), vmaddr)
		require.ErrorIs(t, err, ErrInvalidAddress)
		assert.Contains(t, err.Error(), "Invalid load address")
	})
}

func TestTranslatorSlide(t *testing.T) {
	translator, err := NewTranslator(SlideBase(0x10000000), vmaddr)
	require.NoError(t, err)

	translated, err := translator.Translate(0x110001020)
	require.NoError(t, err)
	assert.Equal(t, addr.Addr(0x100001020), translated)

	t.Run("address below the slide", func(t *testing.T) {
		_, err := translator.Translate(0x1020)
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestTranslatorZeroSlide(t *testing.T) {
	translator, err := NewTranslator(SlideBase(0), vmaddr)
	require.NoError(t, err)

	translated, err := translator.Translate(0x100001020)
	require.NoError(t, err)
	assert.Equal(t, addr.Addr(0x100001020), translated)
}

func TestTranslatorOffset(t *testing.T) {
	translator, err := NewTranslator(OffsetBase(), vmaddr)
	require.NoError(t, err)

	translated, err := translator.Translate(0x1020)
	require.NoError(t, err)
	assert.Equal(t, addr.Addr(0x100001020), translated)

	t.Run("offset overflowing the address space", func(t *testing.T) {
		_, err := translator.Translate(0xffffffff_ffffffff)
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestTranslateAll(t *testing.T) {
	translator, err := NewTranslator(SlideBase(0x1000), vmaddr)
	require.NoError(t, err)

	t.Run("preserves order", func(t *testing.T) {
		translated, err := translator.TranslateAll([]addr.Addr{0x3000, 0x2000})
		require.NoError(t, err)
		assert.Equal(t, []addr.Addr{0x2000, 0x1000}, translated)
	})

	t.Run("repeated translation is consistent", func(t *testing.T) {
		first, err := translator.TranslateAll([]addr.Addr{0x3000})
		require.NoError(t, err)
		second, err := translator.TranslateAll([]addr.Addr{0x3000})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("fails on the first bad address", func(t *testing.T) {
		_, err := translator.TranslateAll([]addr.Addr{0x2000, 0x10})
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}
