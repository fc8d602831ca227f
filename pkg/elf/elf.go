// Package elf extracts the pieces of a kernel image that profile
// generation needs: the .BTF section and the Linux banner.
package elf

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"log"
)

var (
	ErrNotELF       = errors.New("File is not an ELF image")
	ErrNoBTFSection = errors.New("ELF image has no .BTF section")
	ErrNoBanner     = errors.New("ELF image has no linux_banner symbol")
	ErrBadBanner    = errors.New("Banner is not readable")
)

const btfSectionName = ".BTF"

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// IsELF reports whether raw starts with the ELF magic.
func IsELF(raw []byte) bool {
	return len(raw) >= len(elfMagic) && bytes.Equal(raw[:len(elfMagic)], elfMagic)
}

// BTFSection returns the contents of the .BTF section of an ELF image.
func BTFSection(raw []byte) ([]byte, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	sec := f.Section(btfSectionName)
	if sec == nil {
		return nil, ErrNoBTFSection
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("Unable to read %s section: %w", btfSectionName, err)
	}
	return data, nil
}

// Banner returns the Linux banner of an ELF kernel image. The banner is
// the contents of the linux_banner symbol, read from its section.
func Banner(raw []byte) (string, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	syms, err := f.Symbols()
	if err != nil {
		return "", fmt.Errorf("Unable to read symbol table: %w", err)
	}

	for _, sym := range syms {
		if sym.Name != "linux_banner" {
			continue
		}
		if int(sym.Section) >= len(f.Sections) {
			return "", fmt.Errorf("%w: banner is in non-existent section %d", ErrBadBanner, sym.Section)
		}
		sec := f.Sections[sym.Section]
		data, err := sec.Data()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadBanner, err)
		}
		off := sym.Value - sec.Addr
		if off+sym.Size > uint64(len(data)) {
			return "", fmt.Errorf("%w: banner exceeds section bounds", ErrBadBanner)
		}
		log.Printf("Found Linux banner: sec %d, off %d, size %d", sym.Section, off, sym.Size)
		return string(data[off : off+sym.Size]), nil
	}

	return "", ErrNoBanner
}
