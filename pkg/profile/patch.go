// Package profile patches generated profiles so that Volatility 3
// accepts them.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/btf2json/btf2json/pkg/domain"
)

var (
	ErrFileAccess = errors.New("Profile file is not accessible")
	ErrParse      = errors.New("Profile is not valid JSON")
	ErrSchema     = errors.New("Profile has no base_types object")
)

// LongUnsignedInt is the base type definition that Volatility 3 expects
// but generated profiles may lack.
var LongUnsignedInt = domain.BaseType{
	Size:   8,
	Signed: false,
	Kind:   domain.BaseInt,
	Endian: domain.EndianLittle,
}

// Patch sets base_types["long unsigned int"] of the profile at path to
// the definition Volatility 3 expects, overwriting any prior value, and
// rewrites the file in place.
//
// The mutation is applied as a JSON merge patch over the raw document,
// so every other field is left untouched. The rewrite goes through a
// temporary file that replaces the original with a rename.
func Patch(path string) error {
	fmt.Printf("[+] Patching %s...\n", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileAccess, err)
	}

	if err := checkSchema(raw); err != nil {
		return err
	}

	patch, err := json.Marshal(map[string]map[string]domain.BaseType{
		"base_types": {"long unsigned int": LongUnsignedInt},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	patched, err := jsonpatch.MergePatch(raw, patch)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}

	if err := writeAtomic(path, patched); err != nil {
		return fmt.Errorf("%w: %v", ErrFileAccess, err)
	}

	fmt.Printf("[+] Successfully patched %s.\n", path)
	return nil
}

// checkSchema verifies that the document is valid JSON whose root is an
// object with a base_types object.
func checkSchema(raw []byte) error {
	if !json.Valid(raw) {
		return ErrParse
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: root is not an object", ErrSchema)
	}
	baseTypes, ok := doc["base_types"]
	if !ok {
		return ErrSchema
	}
	var bt map[string]json.RawMessage
	if err := json.Unmarshal(baseTypes, &bt); err != nil {
		return fmt.Errorf("%w: base_types is not an object", ErrSchema)
	}
	// JSON null unmarshals into a map without error, leaving it nil
	if bt == nil {
		return fmt.Errorf("%w: base_types is null", ErrSchema)
	}
	return nil
}

// writeAtomic replaces the file at path with data via a temporary file
// in the same directory, so a failed write cannot truncate the
// original.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
