package isf

import (
	"errors"
	"log"

	"github.com/btf2json/btf2json/pkg/domain"
)

var (
	ErrSymbolTypes = errors.New("Symbol type verification failed")
	ErrUserTypes   = errors.New("User type verification failed")
)

// FixSymbolTypes resets symbols that reference undefined types to void.
//
// Symbol types come from a database, so some referenced types will not
// be defined in the BTF section. The returned error reports that this
// happened; the document is valid either way.
func FixSymbolTypes(doc *domain.Document) error {
	var problematic []string
	missing := make(map[string]bool)

	for name, sym := range doc.Symbols {
		if isDefined(doc, sym.Type) {
			continue
		}
		leaf := sym.Type.Leaf()
		log.Printf("Symbol %s references non-present type %s %s", name, leaf.Label(), leaf.Name)
		missing[leaf.Label()+" "+leaf.Name] = true
		problematic = append(problematic, name)
	}

	if len(problematic) == 0 {
		log.Printf("All types referenced by symbols are present")
		return nil
	}
	log.Printf("%d symbols reference missing types, %d unique types are missing",
		len(problematic), len(missing))
	for _, name := range problematic {
		sym := doc.Symbols[name]
		sym.Type = domain.Void()
		doc.Symbols[name] = sym
	}
	return ErrSymbolTypes
}

// CheckUserTypes verifies that all types referenced by fields of user
// types are defined in the document.
func CheckUserTypes(doc *domain.Document) error {
	problematic := 0
	undefined := make(map[string]bool)
	affected := 0

	for name, ut := range doc.UserTypes {
		bad := 0
		for fieldName, field := range ut.Fields {
			if isDefined(doc, field.Type) {
				continue
			}
			leaf := field.Type.Leaf()
			log.Printf("[%s %s::%s] has undefined type `%s %s`",
				ut.Kind, name, fieldName, leaf.Label(), leaf.Name)
			undefined[leaf.Label()+" "+leaf.Name] = true
			bad++
		}
		if bad > 0 {
			problematic++
			affected += bad
		}
	}

	if problematic == 0 {
		log.Printf("All types referenced by user types are present")
		return nil
	}
	log.Printf("%d user types have fields that reference undefined types, %d unique types undefined, %d unique fields affected",
		problematic, len(undefined), affected)
	return ErrUserTypes
}

// isDefined tests if the leaf of a descriptor is defined in the
// document.
func isDefined(doc *domain.Document, d *domain.Descriptor) bool {
	leaf := d.Leaf()
	switch leaf.Kind {
	case domain.DescBase:
		_, ok := doc.BaseTypes[leaf.Name]
		return ok
	case domain.DescEnum:
		_, ok := doc.Enums[leaf.Name]
		return ok
	case domain.DescStruct:
		ut, ok := doc.UserTypes[leaf.Name]
		return ok && ut.Kind == domain.UserStruct
	case domain.DescUnion:
		ut, ok := doc.UserTypes[leaf.Name]
		return ok && ut.Kind == domain.UserUnion
	case domain.DescFunction:
		return true
	}
	return false
}
