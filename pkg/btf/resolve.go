package btf

import "log"

// PathNodeKind classifies the relevant nodes encountered while walking
// from a type to its root. Qualifier nodes (const, volatile, restrict)
// are not relevant for profile generation and are never recorded.
type PathNodeKind uint8

const (
	NodePointer PathNodeKind = iota
	NodeArray
	NodeTypedef
)

// PathNode is one relevant node on the way to a root type.
type PathNode struct {
	Kind    PathNodeKind
	Count   uint64 // array length for NodeArray
	Typedef ID     // typedef ID for NodeTypedef
}

// isIndirection reports whether the node changes the shape of the type.
// Pointer and array nodes do, typedefs do not.
func (n PathNode) isIndirection() bool {
	return n.Kind != NodeTypedef
}

// Path is the sequence of relevant nodes from a starting type down to
// its root.
type Path []PathNode

func (p *Path) record(t *Type) {
	switch t.Kind {
	case KindPtr:
		*p = append(*p, PathNode{Kind: NodePointer})
	case KindArray:
		*p = append(*p, PathNode{Kind: NodeArray, Count: uint64(t.nelems)})
	case KindTypedef:
		*p = append(*p, PathNode{Kind: NodeTypedef, Typedef: t.ID})
	}
}

// HasIndirections reports whether the path contains pointer or array
// nodes.
func (p Path) HasIndirections() bool {
	for _, n := range p {
		if n.isIndirection() {
			return true
		}
	}
	return false
}

// namingTypedef returns the outermost typedef that reaches the root
// without crossing an indirection.
func (p Path) namingTypedef() (ID, bool) {
	var last *PathNode
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].isIndirection() {
			break
		}
		last = &p[i]
	}
	if last != nil && last.Kind == NodeTypedef {
		return last.Typedef, true
	}
	return 0, false
}

// ResolvedType is a root type together with the path that led to it.
type ResolvedType struct {
	Path Path
	Type *Type
}

// PopNode removes and returns the first node of the resolution path.
func (rt *ResolvedType) PopNode() (PathNode, bool) {
	if len(rt.Path) == 0 {
		return PathNode{}, false
	}
	n := rt.Path[0]
	rt.Path = rt.Path[1:]
	return n, true
}

// Name returns a name for the resolved type. Named types use their
// string table entry, unnamed ones fall back to a naming typedef and
// then to the unique unnamed scheme.
func (rt *ResolvedType) Name(f *File) string {
	t := rt.Type
	switch {
	case t.Kind == KindFuncProto:
		return "function"
	case t.Kind == KindVoid:
		return "void"
	case t.name != "":
		return t.name
	}
	if td, ok := rt.Path.namingTypedef(); ok {
		tdt, err := f.TypeByID(td)
		if err == nil && tdt.name != "" {
			return tdt.name
		}
	}
	return t.anonName()
}

// ResolveChain starts at the given type and walks down to the root,
// recording the relevant nodes on the way.
func (f *File) ResolveChain(t *Type) *ResolvedType {
	rt := &ResolvedType{Type: t}
	rt.Path.record(t)
	for {
		next, ok := rt.Type.chained()
		if !ok {
			return rt
		}
		nt, err := f.TypeByID(next)
		if err != nil {
			return rt
		}
		rt.Type = nt
		rt.Path.record(nt)
	}
}

// Typedefs is a processed view of all typedefs in the section.
type Typedefs struct {
	// Fw maps typedef IDs to the root types they resolve to, including
	// the resolution path.
	Fw map[ID]*ResolvedType
	// Bk maps root IDs to the typedefs that resolve to them.
	Bk map[ID][]ID
}

// Partition groups the types into the categories Volatility
// distinguishes between. The ID slices are in ascending order so that
// generation is deterministic.
type Partition struct {
	Base     []ID
	Enum     []ID
	User     []ID
	Typedefs Typedefs
}

// Partition classifies every type in the section. Void (ID 0) belongs
// to the base category.
func (f *File) Partition() *Partition {
	p := &Partition{
		Typedefs: Typedefs{
			Fw: make(map[ID]*ResolvedType),
			Bk: make(map[ID][]ID),
		},
	}

	for id := ID(0); int(id) < len(f.types); id++ {
		t := f.types[id]
		switch {
		case t.IsBase():
			p.Base = append(p.Base, id)
		case t.IsEnum():
			p.Enum = append(p.Enum, id)
		case t.IsUser():
			p.User = append(p.User, id)
		case t.IsTypedef():
			rt := f.ResolveChain(t)
			p.Typedefs.Bk[rt.Type.ID] = append(p.Typedefs.Bk[rt.Type.ID], id)
			p.Typedefs.Fw[id] = rt
		}
	}
	log.Printf("ID sets: base %d, enum %d, user %d",
		len(p.Base), len(p.Enum), len(p.User))

	return p
}

// NamesByID returns all names of the type with the given ID.
//
// If typedefs are given they contribute alternative names, but only
// typedefs that reach the type without indirections.
func (f *File) NamesByID(id ID, tds *Typedefs) ([]string, error) {
	t, err := f.TypeByID(id)
	if err != nil {
		return nil, err
	}
	if t.Kind == KindVoid {
		return []string{"void"}, nil
	}

	var names []string
	if t.name != "" {
		names = append(names, t.name)
	} else {
		names = append(names, t.anonName())
	}

	if tds == nil {
		return names, nil
	}
	for _, tdID := range tds.Bk[id] {
		rt, ok := tds.Fw[tdID]
		if !ok {
			log.Printf("Inconsistency in typedefs: no fwd entry for %d", tdID)
			continue
		}
		if rt.Path.HasIndirections() {
			continue
		}
		td, err := f.TypeByID(tdID)
		if err != nil || td.name == "" {
			continue
		}
		names = append(names, td.name)
	}
	return names, nil
}
