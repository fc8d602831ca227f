package domain

// Document is an ISF file as Volatility 3 consumes it. Maps serialize with
// sorted keys, so output is deterministic for a given input.
type Document struct {
	Metadata  Metadata            `json:"metadata"`
	UserTypes map[string]UserType `json:"user_types"`
	Enums     map[string]Enum     `json:"enums"`
	BaseTypes map[string]BaseType `json:"base_types"`
	Symbols   map[string]Symbol   `json:"symbols"`
}

// Metadata describes the producer and the sources the profile was
// generated from.
type Metadata struct {
	Producer Producer  `json:"producer"`
	Format   string    `json:"format"`
	Linux    LinuxMeta `json:"linux"`
}

type Producer struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// LinuxMeta lists the sources of symbol and type information.
type LinuxMeta struct {
	Symbols []Source `json:"symbols"`
	Types   []Source `json:"types"`
}

// Source identifies one input file by kind, name, and content hash.
type Source struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	HashType  string `json:"hash_type"`
	HashValue string `json:"hash_value"`
}

// BaseType is an ISF element_base_type: a primitive described by size,
// signedness, kind, and byte order.
type BaseType struct {
	Size   uint64 `json:"size"`
	Signed bool   `json:"signed"`
	Kind   string `json:"kind"`
	Endian string `json:"endian"`
}

// Base type kinds.
const (
	BaseVoid  = "void"
	BaseInt   = "int"
	BaseFloat = "float"
	BaseChar  = "char"
	BaseBool  = "bool"
)

// Byte orders.
const (
	EndianLittle = "little"
	EndianBig    = "big"
)

// UserType is an ISF element_user_type (struct, union, or class).
type UserType struct {
	Kind   string           `json:"kind"`
	Size   uint64           `json:"size"`
	Fields map[string]Field `json:"fields"`
}

// User type kinds.
const (
	UserStruct = "struct"
	UserUnion  = "union"
)

// Field is a single member of a user type.
type Field struct {
	Type      *Descriptor `json:"type"`
	Offset    uint64      `json:"offset"`
	Anonymous bool        `json:"anonymous"`
}

// Enum is an ISF element_enum.
type Enum struct {
	Size      uint64           `json:"size"`
	Base      string           `json:"base"`
	Constants map[string]int64 `json:"constants"`
}

// Symbol is an ISF symbol entry.
type Symbol struct {
	Address      uint64      `json:"address"`
	Type         *Descriptor `json:"type"`
	Linkage      string      `json:"linkage,omitempty"`
	ConstantData string      `json:"constant_data,omitempty"`
}
