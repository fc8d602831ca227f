package isf

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btf2json/btf2json/pkg/btf"
	"github.com/btf2json/btf2json/pkg/domain"
	"github.com/btf2json/btf2json/pkg/symbols"
)

const (
	producerName  = "btf2json"
	formatVersion = "6.2.0"
)

// Source kinds recorded in profile metadata.
const (
	sourceBTF   = "btf"
	sourceMap   = "system-map"
	sourceSymdb = "symdb"
)

func buildMetadata(f *btf.File, syms *symbols.Symbols) domain.Metadata {
	md := domain.Metadata{
		Producer: domain.Producer{Name: producerName, Version: Version},
		Format:   formatVersion,
		Linux: domain.LinuxMeta{
			Symbols: []domain.Source{},
			Types:   []domain.Source{newSource(sourceBTF, f.Name(), f.Raw())},
		},
	}

	if raw, name, ok := syms.MapSource(); ok {
		md.Linux.Symbols = append(md.Linux.Symbols, newSource(sourceMap, name, raw))
	}
	if raw, name, ok := syms.SymdbSource(); ok {
		md.Linux.Symbols = append(md.Linux.Symbols, newSource(sourceSymdb, name, raw))
	}

	return md
}

func newSource(kind, name string, raw []byte) domain.Source {
	sum := sha256.Sum256(raw)
	return domain.Source{
		Kind:      kind,
		Name:      name,
		HashType:  "sha256",
		HashValue: hex.EncodeToString(sum[:]),
	}
}
