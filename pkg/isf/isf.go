// Package isf assembles Volatility 3 ISF documents from decoded BTF
// information and kernel symbols.
package isf

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/btf2json/btf2json/pkg/btf"
	"github.com/btf2json/btf2json/pkg/domain"
	"github.com/btf2json/btf2json/pkg/symbols"
)

// Version of the tool, recorded as the profile producer version.
const Version = "0.1.0"

var (
	ErrBadBaseType = errors.New("BTF type cannot be converted to an ISF base type")
	ErrNoEnumBase  = errors.New("Cannot find name for base type of enum")
	ErrBadSymdb    = errors.New("Symbol type has invalid format")
)

// Generate builds an ISF document from a BTF section and symbol
// information.
func Generate(f *btf.File, syms *symbols.Symbols) (*domain.Document, error) {
	part := f.Partition()

	doc := &domain.Document{
		Metadata:  buildMetadata(f, syms),
		BaseTypes: make(map[string]domain.BaseType),
		UserTypes: make(map[string]domain.UserType),
		Enums:     make(map[string]domain.Enum),
		Symbols:   make(map[string]domain.Symbol),
	}

	for _, id := range part.Base {
		t, err := f.TypeByID(id)
		if err != nil {
			return nil, err
		}
		names, err := f.NamesByID(id, nil)
		if err != nil {
			return nil, err
		}
		bt, err := buildBase(f, t)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			doc.BaseTypes[name] = bt
		}
	}
	ensurePointer(doc.BaseTypes, f.Endian)

	for _, id := range part.User {
		t, err := f.TypeByID(id)
		if err != nil {
			return nil, err
		}
		names, err := f.NamesByID(id, &part.Typedefs)
		if err != nil {
			return nil, err
		}
		ut := buildUser(f, t)
		for _, name := range names {
			doc.UserTypes[name] = ut
		}
	}

	for _, id := range part.Enum {
		t, err := f.TypeByID(id)
		if err != nil {
			return nil, err
		}
		names, err := f.NamesByID(id, &part.Typedefs)
		if err != nil {
			return nil, err
		}
		en, err := buildEnum(t, doc.BaseTypes)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			doc.Enums[name] = en
		}
	}

	for name, sym := range syms.All() {
		entry := domain.Symbol{
			Address:      sym.Addr,
			Type:         domain.Void(),
			ConstantData: sym.ConstantData,
		}
		if sym.Type != "" {
			var d domain.Descriptor
			if err := json.Unmarshal([]byte(sym.Type), &d); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrBadSymdb, sym.Type, err)
			}
			entry.Type = &d
		}
		doc.Symbols[name] = entry
	}

	log.Printf("ISF elements: base %d, enum %d, user %d, symbol %d",
		len(doc.BaseTypes), len(doc.Enums), len(doc.UserTypes), len(doc.Symbols))

	return doc, nil
}

// ensurePointer adds a base type named "pointer" with the appropriate
// size and endianness. Volatility expects it even though BTF has no such
// type.
func ensurePointer(baseTypes map[string]domain.BaseType, endian btf.Endian) {
	if _, ok := baseTypes["pointer"]; ok {
		return
	}
	baseTypes["pointer"] = domain.BaseType{
		Size:   8,
		Signed: false,
		Kind:   domain.BaseInt,
		Endian: endian.String(),
	}
}

func buildBase(f *btf.File, t *btf.Type) (domain.BaseType, error) {
	kind, err := baseKind(t)
	if err != nil {
		return domain.BaseType{}, err
	}
	size, _ := t.Size()
	signed, ok := t.Signed()
	if !ok {
		return domain.BaseType{}, fmt.Errorf("%w: %s", ErrBadBaseType, t.Kind)
	}
	return domain.BaseType{
		Size:   size,
		Signed: signed,
		Kind:   kind,
		Endian: f.Endian.String(),
	}, nil
}

func baseKind(t *btf.Type) (string, error) {
	switch t.Kind {
	case btf.KindVoid:
		return domain.BaseVoid, nil
	case btf.KindFloat:
		return domain.BaseFloat, nil
	case btf.KindInt:
		if t.IsChar() {
			return domain.BaseChar, nil
		}
		if t.IsBool() {
			return domain.BaseBool, nil
		}
		return domain.BaseInt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrBadBaseType, t.Kind)
}

func buildUser(f *btf.File, t *btf.Type) domain.UserType {
	kind := domain.UserStruct
	if t.IsUnion() {
		kind = domain.UserUnion
	}
	size, _ := t.Size()

	fields := make(map[string]domain.Field)
	for idx := range t.Members {
		m := &t.Members[idx]
		fields[m.DisplayName(idx)] = buildField(f, t, m)
	}

	return domain.UserType{Kind: kind, Size: size, Fields: fields}
}

func buildField(f *btf.File, parent *btf.Type, m *btf.Member) domain.Field {
	mt, err := f.TypeByID(m.Type)
	if err != nil {
		log.Printf("[%d::%s] member references unknown type %d",
			parent.ID, m.Name, m.Type)
		return domain.Field{Type: domain.Void(), Offset: m.ByteOffset(), Anonymous: m.IsAnon()}
	}
	rt := f.ResolveChain(mt)
	name := rt.Name(f)

	return domain.Field{
		Type:      buildDescriptor(f, parent, m, rt, name, true),
		Offset:    m.ByteOffset(),
		Anonymous: m.IsAnon(),
	}
}

// buildDescriptor turns a resolved member type into an ISF type
// descriptor by unwinding the resolution path.
func buildDescriptor(f *btf.File, parent *btf.Type, m *btf.Member, rt *btf.ResolvedType, name string, handleBitfield bool) *domain.Descriptor {
	if node, ok := rt.PopNode(); ok {
		switch node.Kind {
		case btf.NodePointer:
			return &domain.Descriptor{
				Kind:    domain.DescPointer,
				Subtype: buildDescriptor(f, parent, m, rt, name, handleBitfield),
			}
		case btf.NodeArray:
			return &domain.Descriptor{
				Kind:    domain.DescArray,
				Count:   node.Count,
				Subtype: buildDescriptor(f, parent, m, rt, name, handleBitfield),
			}
		default: // typedef, transparent
			return buildDescriptor(f, parent, m, rt, name, handleBitfield)
		}
	}

	if m.IsBitfield() && handleBitfield {
		pos, length := m.BitfieldInfo()
		return &domain.Descriptor{
			Kind:        domain.DescBitfield,
			BitPosition: pos,
			BitLength:   length,
			Type:        buildDescriptor(f, parent, m, rt, name, false),
		}
	}

	t := rt.Type
	switch {
	case t.IsUnion():
		return &domain.Descriptor{Kind: domain.DescUnion, Name: name}
	case t.IsStruct():
		return &domain.Descriptor{Kind: domain.DescStruct, Name: name}
	case t.IsFwd():
		kind := domain.DescStruct
		if t.IsFwdUnion() {
			kind = domain.DescUnion
		}
		log.Printf("[%d::%s] `%s %s` from fwd declaration will likely not be present",
			parent.ID, m.Name, kind, name)
		return &domain.Descriptor{Kind: kind, Name: name}
	case t.IsEnum():
		return &domain.Descriptor{Kind: domain.DescEnum, Name: name}
	case t.IsBase():
		return &domain.Descriptor{Kind: domain.DescBase, Name: name}
	case t.IsFunc():
		return &domain.Descriptor{Kind: domain.DescFunction}
	}

	log.Printf("[%d::%s] unable to construct type descriptor for %s, using void",
		parent.ID, m.Name, t.Kind)
	return domain.Void()
}

func buildEnum(t *btf.Type, baseTypes map[string]domain.BaseType) (domain.Enum, error) {
	size, _ := t.Size()
	signed, _ := t.Signed()

	// The name of the enum's base type is the first int base type with
	// matching size and signedness, in name order, so the choice is
	// deterministic.
	names := make([]string, 0, len(baseTypes))
	for name := range baseTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	base := ""
	for _, name := range names {
		bt := baseTypes[name]
		if bt.Size == size && bt.Signed == signed && bt.Kind == domain.BaseInt {
			base = name
			break
		}
	}
	if base == "" {
		return domain.Enum{}, fmt.Errorf("%w: size %d, signed %t", ErrNoEnumBase, size, signed)
	}

	constants := make(map[string]int64, len(t.Values))
	for _, v := range t.Values {
		constants[v.Name] = v.Value
	}

	return domain.Enum{Size: size, Base: base, Constants: constants}, nil
}
