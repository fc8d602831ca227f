// Package btf decodes BTF type sections the way the kernel lays them
// out: a header, a flat array of type records, and a string table.
package btf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/btf2json/btf2json/pkg/elf"
)

var (
	ErrNoBTF           = errors.New("File contains no BTF information")
	ErrHeaderCorrupted = errors.New("BTF header is not readable")
	ErrTypesCorrupted  = errors.New("BTF type section is not readable")
	ErrBadString       = errors.New("BTF string table entry is not readable")
	ErrUnknownID       = errors.New("No type with this ID")
)

// Endian is the byte order of a BTF section, determined from its magic.
type Endian int

const (
	EndianLittle Endian = iota
	EndianBig
)

func (e Endian) String() string {
	if e == EndianBig {
		return "big"
	}
	return "little"
}

// BTF magic is 0xEB9F, stored in the byte order of the section.
var (
	btfMagicLE = []byte{0x9f, 0xeb}
	btfMagicBE = []byte{0xeb, 0x9f}
)

const btfHeaderLen = 24

// File is a fully decoded BTF section together with the raw bytes of the
// file it came from.
type File struct {
	Endian Endian

	name  string
	raw   []byte
	types []*Type
	strs  []byte
}

// Name returns the base name of the file the BTF information was
// obtained from.
func (f *File) Name() string {
	return f.name
}

// Raw returns the raw contents of the input file.
func (f *File) Raw() []byte {
	return f.raw
}

// NumTypes returns the number of types defined by the section, not
// counting void.
func (f *File) NumTypes() int {
	return len(f.types) - 1
}

// TypeByID returns the type with the given ID. ID 0 is void.
func (f *File) TypeByID(id ID) (*Type, error) {
	if int(id) >= len(f.types) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return f.types[id], nil
}

// Load reads BTF information from a file. The file may be a raw .BTF
// section or an ELF kernel image containing one.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sec := raw
	switch {
	case isBTFMagic(raw):
		log.Printf("Got stand-alone .BTF section")
	case elf.IsELF(raw):
		log.Printf("Got ELF image, extracting .BTF section")
		if sec, err = elf.BTFSection(raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBTF, path)
	}

	f, err := Parse(sec)
	if err != nil {
		return nil, err
	}
	f.name = filepath.Base(path)
	f.raw = raw
	return f, nil
}

func isBTFMagic(raw []byte) bool {
	return len(raw) >= 2 &&
		(bytes.Equal(raw[:2], btfMagicLE) || bytes.Equal(raw[:2], btfMagicBE))
}

// Parse decodes a raw .BTF section.
func Parse(sec []byte) (*File, error) {
	var (
		endian Endian
		bo     binary.ByteOrder
	)
	switch {
	case len(sec) >= 2 && bytes.Equal(sec[:2], btfMagicLE):
		endian, bo = EndianLittle, binary.LittleEndian
	case len(sec) >= 2 && bytes.Equal(sec[:2], btfMagicBE):
		endian, bo = EndianBig, binary.BigEndian
	default:
		return nil, ErrNoBTF
	}
	if len(sec) < btfHeaderLen {
		return nil, ErrHeaderCorrupted
	}
	log.Printf("BTF section is %s endian", endian)

	hdrLen := bo.Uint32(sec[4:])
	typeOff := bo.Uint32(sec[8:])
	typeLen := bo.Uint32(sec[12:])
	strOff := bo.Uint32(sec[16:])
	strLen := bo.Uint32(sec[20:])

	typeStart := uint64(hdrLen) + uint64(typeOff)
	typeEnd := typeStart + uint64(typeLen)
	strStart := uint64(hdrLen) + uint64(strOff)
	strEnd := strStart + uint64(strLen)
	if typeEnd > uint64(len(sec)) || strEnd > uint64(len(sec)) {
		log.Printf("Section bounds exceed file size: types %d..%d, strings %d..%d, file %d",
			typeStart, typeEnd, strStart, strEnd, len(sec))
		return nil, ErrHeaderCorrupted
	}

	f := &File{
		Endian: endian,
		strs:   sec[strStart:strEnd],
		types:  []*Type{{Kind: KindVoid}},
	}

	d := &decoder{buf: sec[typeStart:typeEnd], bo: bo}
	for !d.done() {
		t, err := f.readType(d, ID(len(f.types)))
		if err != nil {
			return nil, err
		}
		f.types = append(f.types, t)
	}
	log.Printf("Section defines %d types", f.NumTypes())

	return f, nil
}

// readType decodes one type record at the decoder cursor.
func (f *File) readType(d *decoder, id ID) (*Type, error) {
	nameOff, err := d.u32()
	if err != nil {
		return nil, err
	}
	info, err := d.u32()
	if err != nil {
		return nil, err
	}
	sizeOrType, err := d.u32()
	if err != nil {
		return nil, err
	}

	t := &Type{
		ID:       id,
		Kind:     Kind((info >> 24) & 0x1f),
		kindFlag: info>>31 != 0,
	}
	vlen := int(info & 0xffff)

	if t.name, err = f.strAt(nameOff); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindInt:
		t.size = sizeOrType
		enc, err := d.u32()
		if err != nil {
			return nil, err
		}
		t.intSigned = enc>>24&0x1 != 0
		t.intChar = enc>>24&0x2 != 0
		t.intBool = enc>>24&0x4 != 0
	case KindPtr, KindTypedef, KindVolatile, KindConst, KindRestrict,
		KindFunc, KindTypeTag:
		t.ref = ID(sizeOrType)
	case KindFwd:
		// no extra data
	case KindFloat:
		t.size = sizeOrType
	case KindArray:
		elem, err := d.u32()
		if err != nil {
			return nil, err
		}
		if _, err := d.u32(); err != nil { // index type, unused
			return nil, err
		}
		nelems, err := d.u32()
		if err != nil {
			return nil, err
		}
		t.elem = ID(elem)
		t.nelems = nelems
	case KindStruct, KindUnion:
		t.size = sizeOrType
		for i := 0; i < vlen; i++ {
			m, err := f.readMember(d, t.kindFlag)
			if err != nil {
				return nil, err
			}
			t.Members = append(t.Members, m)
		}
	case KindEnum:
		t.size = sizeOrType
		for i := 0; i < vlen; i++ {
			v, err := f.readEnumValue(d, false)
			if err != nil {
				return nil, err
			}
			t.Values = append(t.Values, v)
		}
	case KindEnum64:
		t.size = sizeOrType
		for i := 0; i < vlen; i++ {
			v, err := f.readEnumValue(d, true)
			if err != nil {
				return nil, err
			}
			t.Values = append(t.Values, v)
		}
	case KindFuncProto:
		t.ref = ID(sizeOrType) // return type
		if err := d.skip(vlen * 8); err != nil {
			return nil, err
		}
	case KindVar, KindDeclTag:
		t.ref = ID(sizeOrType)
		if err := d.skip(4); err != nil {
			return nil, err
		}
	case KindDatasec:
		t.size = sizeOrType
		if err := d.skip(vlen * 12); err != nil {
			return nil, err
		}
	default:
		log.Printf("Record %d has unknown kind %d", id, uint8(t.Kind))
		return nil, ErrTypesCorrupted
	}

	return t, nil
}

func (f *File) readMember(d *decoder, kindFlag bool) (Member, error) {
	nameOff, err := d.u32()
	if err != nil {
		return Member{}, err
	}
	typeID, err := d.u32()
	if err != nil {
		return Member{}, err
	}
	offset, err := d.u32()
	if err != nil {
		return Member{}, err
	}

	m := Member{Type: ID(typeID)}
	if m.Name, err = f.strAt(nameOff); err != nil {
		return Member{}, err
	}
	if kindFlag {
		// kind flag set: upper byte of offset is the bitfield size
		m.bitOffset = offset & 0xffffff
		m.bitfieldSize = uint8(offset >> 24)
	} else {
		m.bitOffset = offset
	}
	return m, nil
}

func (f *File) readEnumValue(d *decoder, wide bool) (EnumValue, error) {
	nameOff, err := d.u32()
	if err != nil {
		return EnumValue{}, err
	}
	lo, err := d.u32()
	if err != nil {
		return EnumValue{}, err
	}

	v := EnumValue{}
	if v.Name, err = f.strAt(nameOff); err != nil {
		return EnumValue{}, err
	}
	if wide {
		hi, err := d.u32()
		if err != nil {
			return EnumValue{}, err
		}
		v.Value = int64(uint64(hi)<<32 | uint64(lo))
	} else {
		v.Value = int64(int32(lo))
	}
	return v, nil
}

// strAt returns the NUL-terminated string table entry at off.
func (f *File) strAt(off uint32) (string, error) {
	if int64(off) >= int64(len(f.strs)) {
		log.Printf("String table offset %d exceeds table size %d", off, len(f.strs))
		return "", ErrBadString
	}
	end := bytes.IndexByte(f.strs[off:], 0)
	if end < 0 {
		return "", ErrBadString
	}
	return string(f.strs[off : int(off)+end]), nil
}

// decoder is a bounds-checked cursor over the type section.
type decoder struct {
	buf []byte
	off int
	bo  binary.ByteOrder
}

func (d *decoder) done() bool {
	return d.off >= len(d.buf)
}

func (d *decoder) u32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		log.Printf("Type section truncated at offset %d", d.off)
		return 0, ErrTypesCorrupted
	}
	v := d.bo.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) skip(n int) error {
	if d.off+n > len(d.buf) {
		log.Printf("Type section truncated at offset %d", d.off)
		return ErrTypesCorrupted
	}
	d.off += n
	return nil
}
