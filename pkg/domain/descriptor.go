package domain

import "encoding/json"

// Descriptor kinds (the "kind" discriminator of an ISF type_descriptor).
const (
	DescBase     = "base"
	DescEnum     = "enum"
	DescStruct   = "struct"
	DescUnion    = "union"
	DescArray    = "array"
	DescPointer  = "pointer"
	DescBitfield = "bitfield"
	DescFunction = "function"
)

// Descriptor is an ISF type_descriptor: a reference to a named type,
// possibly wrapped in pointer, array, or bitfield nodes. Which fields are
// meaningful depends on Kind, so marshalling is shaped per kind.
type Descriptor struct {
	Kind        string      `json:"kind"`
	Name        string      `json:"name,omitempty"`
	Count       uint64      `json:"count,omitempty"`
	Subtype     *Descriptor `json:"subtype,omitempty"`
	BitPosition uint8       `json:"bit_position,omitempty"`
	BitLength   uint8       `json:"bit_length,omitempty"`
	Type        *Descriptor `json:"type,omitempty"`
}

// Void returns the descriptor symbols fall back to when no type
// information is available.
func Void() *Descriptor {
	return &Descriptor{Kind: DescBase, Name: BaseVoid}
}

// Leaf follows pointer, array, and bitfield nodes to the named type at
// the end of the descriptor.
func (d *Descriptor) Leaf() *Descriptor {
	t := d
	for {
		switch t.Kind {
		case DescArray, DescPointer:
			t = t.Subtype
		case DescBitfield:
			t = t.Type
		default:
			return t
		}
	}
}

// Label returns the C-style label of a named descriptor ("struct",
// "union", "enum", or "" for base types). Only meaningful for leaves.
func (d *Descriptor) Label() string {
	switch d.Kind {
	case DescStruct, DescUnion, DescEnum:
		return d.Kind
	default:
		return ""
	}
}

func (d *Descriptor) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DescArray:
		return json.Marshal(struct {
			Kind    string      `json:"kind"`
			Count   uint64      `json:"count"`
			Subtype *Descriptor `json:"subtype"`
		}{d.Kind, d.Count, d.Subtype})
	case DescPointer:
		return json.Marshal(struct {
			Kind    string      `json:"kind"`
			Subtype *Descriptor `json:"subtype"`
		}{d.Kind, d.Subtype})
	case DescBitfield:
		return json.Marshal(struct {
			Kind        string      `json:"kind"`
			BitPosition uint8       `json:"bit_position"`
			BitLength   uint8       `json:"bit_length"`
			Type        *Descriptor `json:"type"`
		}{d.Kind, d.BitPosition, d.BitLength, d.Type})
	case DescFunction:
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{d.Kind})
	default:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		}{d.Kind, d.Name})
	}
}

func (d *Descriptor) UnmarshalJSON(data []byte) error {
	type plain Descriptor
	return json.Unmarshal(data, (*plain)(d))
}
