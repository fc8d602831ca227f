// Package symbols builds kernel symbol information from a System.map
// file, the embedded symbol-type database, and the Linux banner.
package symbols

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btf2json/btf2json/pkg/btf"
)

var (
	ErrMapCorrupted = errors.New("System map is not readable")
	ErrNoStext      = errors.New("No _stext symbol found in system map")
	ErrNoBannerSym  = errors.New("No symbol entry for Linux banner")
	ErrUnknownArch  = errors.New("Unknown architecture")
)

// Arch selects the default kernel base offset used to remove the KASLR
// shift from System.map addresses.
type Arch string

const (
	ArchX8664 Arch = "x86_64"
	ArchArm64 Arch = "arm64"
)

func (a Arch) baseOffset() (uint64, error) {
	switch a {
	case ArchX8664:
		return 0xffffffff81000000, nil
	case ArchArm64:
		return 0xffff800080010000, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownArch, a)
}

// Scope of a symbol, derived from the case of its System.map kind
// character.
type Scope uint8

const (
	ScopeGlobal Scope = iota
	ScopeLocal
)

// validKinds are the System.map symbol kinds we accept, both cases.
const validKinds = "AaBbDdRrTtVvWw"

// Symbol is everything we know about a single kernel symbol.
type Symbol struct {
	Addr         uint64
	Type         string // JSON type descriptor, "" if unknown
	Kind         byte
	Scope        Scope
	ConstantData string
}

// Symbols is the combined symbol information, plus the raw sources it
// was built from for profile metadata.
type Symbols struct {
	syms map[string]*Symbol

	rawMap    []byte
	mapName   string
	rawSymdb  []byte
	symdbName string

	baseOffset uint64
}

// Len returns the number of symbols.
func (s *Symbols) Len() int {
	return len(s.syms)
}

// WithTypes returns the number of symbols that have associated type
// information.
func (s *Symbols) WithTypes() int {
	n := 0
	for _, sym := range s.syms {
		if sym.Type != "" {
			n++
		}
	}
	return n
}

// Addr returns the address of the named symbol.
func (s *Symbols) Addr(name string) (uint64, bool) {
	sym, ok := s.syms[name]
	if !ok {
		return 0, false
	}
	return sym.Addr, true
}

// All returns the symbol table keyed by name.
func (s *Symbols) All() map[string]*Symbol {
	return s.syms
}

// MapSource returns the raw System.map and its name, ok is false if no
// map was loaded.
func (s *Symbols) MapSource() (raw []byte, name string, ok bool) {
	return s.rawMap, s.mapName, s.rawMap != nil
}

// SymdbSource returns the raw symdb and its name, ok is false if no
// symdb types were added.
func (s *Symbols) SymdbSource() (raw []byte, name string, ok bool) {
	return s.rawSymdb, s.symdbName, s.rawSymdb != nil
}

// Builder combines symbol information from different sources.
type Builder struct {
	s Symbols
}

func NewBuilder() *Builder {
	return &Builder{s: Symbols{syms: make(map[string]*Symbol)}}
}

// Build returns the combined symbol information.
func (b *Builder) Build() *Symbols {
	return &b.s
}

// SetBaseOffset sets the architecture default base offset used for the
// KASLR rebase.
func (b *Builder) SetBaseOffset(arch Arch) error {
	off, err := arch.baseOffset()
	if err != nil {
		return err
	}
	b.s.baseOffset = off
	log.Printf("Base offset set to %#x", off)
	return nil
}

// AddSystemMap adds symbol names and addresses from a System.map file.
//
// Symbol names do not disambiguate symbols, but ISF files key symbols by
// name. A name that appears more than once is dropped altogether.
func (b *Builder) AddSystemMap(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	syms := make(map[string]*Symbol)
	ambiguous := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, " ")
		if len(fields) != 3 {
			return fmt.Errorf("%w: invalid line %q", ErrMapCorrupted, line)
		}
		addrStr, kindStr, name := fields[0], fields[1], fields[2]

		if ambiguous[name] {
			continue
		}
		if _, ok := syms[name]; ok {
			delete(syms, name)
			ambiguous[name] = true
			continue
		}

		if len(kindStr) != 1 || !strings.Contains(validKinds, kindStr) {
			return fmt.Errorf("%w: invalid symbol kind %q", ErrMapCorrupted, kindStr)
		}
		kind := kindStr[0]
		addr, err := strconv.ParseUint(addrStr, 16, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid address %q", ErrMapCorrupted, addrStr)
		}

		scope := ScopeGlobal
		if kind >= 'a' && kind <= 'z' {
			scope = ScopeLocal
		}
		syms[name] = &Symbol{Addr: addr, Kind: kind, Scope: scope}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMapCorrupted, err)
	}

	stext, ok := syms["_stext"]
	if !ok {
		return ErrNoStext
	}
	shift := stext.Addr - b.s.baseOffset
	log.Printf("Removing KASLR shift of %#x", shift)
	for _, sym := range syms {
		sym.Addr -= shift
	}

	b.s.syms = syms
	b.s.rawMap = raw
	b.s.mapName = filepath.Base(path)
	return nil
}

// AddBTFTypes will derive type information for symbols from the BTF
// section itself. Not implemented, symbols keep the types they already
// have.
func (b *Builder) AddBTFTypes(_ *btf.File) *Builder {
	log.Printf("Types from BTF not implemented")
	return b
}

// AddBanner attaches the base64-encoded banner as payload to the
// linux_banner symbol. This is how Volatility expects it.
func (b *Builder) AddBanner(banner string) error {
	sym, ok := b.s.syms["linux_banner"]
	if !ok {
		return ErrNoBannerSym
	}
	sym.ConstantData = base64.StdEncoding.EncodeToString([]byte(banner))
	return nil
}
