package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsELF(t *testing.T) {
	assert.True(t, IsELF([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}))
	assert.False(t, IsELF([]byte{0x9f, 0xeb, 0, 0}))
	assert.False(t, IsELF([]byte("ELF")))
	assert.False(t, IsELF(nil))
}

func TestBTFSectionRejectsNonELF(t *testing.T) {
	_, err := BTFSection([]byte("MZ this is not an ELF file"))
	assert.ErrorIs(t, err, ErrNotELF)
}

func TestBannerRejectsNonELF(t *testing.T) {
	_, err := Banner([]byte{0x9f, 0xeb, 0, 0})
	assert.ErrorIs(t, err, ErrNotELF)
}

func TestBTFSectionRejectsTruncatedELF(t *testing.T) {
	// valid magic, nothing else
	_, err := BTFSection([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	assert.ErrorIs(t, err, ErrNotELF)
}
