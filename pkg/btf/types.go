package btf

import "fmt"

// ID of a type in the BTF type section. ID 0 is void.
type ID uint32

// Kind of a BTF type record.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindPtr
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFwd
	KindTypedef
	KindVolatile
	KindConst
	KindRestrict
	KindFunc
	KindFuncProto
	KindVar
	KindDatasec
	KindFloat
	KindDeclTag
	KindTypeTag
	KindEnum64
)

var kindNames = map[Kind]string{
	KindVoid:      "void",
	KindInt:       "int",
	KindPtr:       "ptr",
	KindArray:     "array",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindEnum:      "enum",
	KindFwd:       "fwd",
	KindTypedef:   "typedef",
	KindVolatile:  "volatile",
	KindConst:     "const",
	KindRestrict:  "restrict",
	KindFunc:      "func",
	KindFuncProto: "func_proto",
	KindVar:       "var",
	KindDatasec:   "datasec",
	KindFloat:     "float",
	KindDeclTag:   "decl_tag",
	KindTypeTag:   "type_tag",
	KindEnum64:    "enum64",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_%d", uint8(k))
}

// Member of a struct or union.
type Member struct {
	Name string // "" if anonymous
	Type ID

	bitOffset    uint32
	bitfieldSize uint8
}

// DisplayName returns the member name, with a unique fallback for
// anonymous members.
func (m *Member) DisplayName(idx int) string {
	if m.Name == "" {
		return fmt.Sprintf("unnamed_member_%d", idx)
	}
	return m.Name
}

// IsAnon reports whether the member is unnamed.
func (m *Member) IsAnon() bool {
	return m.Name == ""
}

// IsBitfield reports whether the member is a bitfield.
func (m *Member) IsBitfield() bool {
	return m.bitfieldSize != 0
}

// ByteOffset returns the offset of the member in bytes.
func (m *Member) ByteOffset() uint64 {
	return uint64(m.bitOffset >> 3)
}

// BitfieldInfo returns the position of the first bit within its byte and
// the length of the bitfield in bits.
func (m *Member) BitfieldInfo() (position, length uint8) {
	return uint8(m.bitOffset & 0x07), m.bitfieldSize
}

// EnumValue is one named constant of an enum.
type EnumValue struct {
	Name  string
	Value int64
}

// Type is a single decoded BTF type record.
type Type struct {
	ID   ID
	Kind Kind

	name     string
	size     uint32
	ref      ID // referenced type for ptr, typedef, qualifiers, func, tags
	elem     ID // array element type
	nelems   uint32
	kindFlag bool

	intSigned bool
	intChar   bool
	intBool   bool

	Members []Member
	Values  []EnumValue
}

// Name returns the string table entry of the type, "" if anonymous.
func (t *Type) Name() string {
	return t.name
}

// anonName is the unique naming scheme for types without a string table
// entry.
func (t *Type) anonName() string {
	return fmt.Sprintf("unnamed_%s_%d", t.Kind, t.ID)
}

// IsBase reports whether the type maps to an ISF base type.
func (t *Type) IsBase() bool {
	return t.Kind == KindVoid || t.Kind == KindInt || t.Kind == KindFloat
}

func (t *Type) IsEnum() bool {
	return t.Kind == KindEnum || t.Kind == KindEnum64
}

func (t *Type) IsUser() bool {
	return t.Kind == KindStruct || t.Kind == KindUnion
}

func (t *Type) IsStruct() bool {
	return t.Kind == KindStruct
}

func (t *Type) IsUnion() bool {
	return t.Kind == KindUnion
}

func (t *Type) IsTypedef() bool {
	return t.Kind == KindTypedef
}

func (t *Type) IsFunc() bool {
	return t.Kind == KindFuncProto
}

func (t *Type) IsFwd() bool {
	return t.Kind == KindFwd
}

// Forward declarations carry the struct/union distinction in the kind
// flag.
func (t *Type) IsFwdStruct() bool {
	return t.Kind == KindFwd && !t.kindFlag
}

func (t *Type) IsFwdUnion() bool {
	return t.Kind == KindFwd && t.kindFlag
}

// IsChar reports whether an int type has the char encoding.
func (t *Type) IsChar() bool {
	return t.Kind == KindInt && t.intChar
}

// IsBool reports whether an int type has the bool encoding.
func (t *Type) IsBool() bool {
	return t.Kind == KindInt && t.intBool
}

// Signed returns the signedness of the type, ok is false for kinds that
// have none.
func (t *Type) Signed() (signed, ok bool) {
	switch t.Kind {
	case KindInt:
		return t.intSigned, true
	case KindEnum, KindEnum64:
		return t.kindFlag, true
	case KindVoid, KindPtr:
		return false, true
	case KindFloat:
		return true, true
	}
	return false, false
}

// Size returns the size of the type in bytes, ok is false for kinds that
// have none.
func (t *Type) Size() (size uint64, ok bool) {
	switch t.Kind {
	case KindInt, KindEnum, KindEnum64, KindStruct, KindUnion, KindFloat, KindDatasec:
		return uint64(t.size), true
	}
	return 0, false
}

// chained returns the type this one refers to, ok is false for root
// types. Arrays chain to their element type.
func (t *Type) chained() (ID, bool) {
	switch t.Kind {
	case KindPtr, KindTypedef, KindVolatile, KindConst, KindRestrict,
		KindFunc, KindDeclTag, KindTypeTag:
		return t.ref, true
	case KindArray:
		return t.elem, true
	}
	return 0, false
}
