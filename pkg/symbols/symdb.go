package symbols

import (
	"bufio"
	"bytes"
	"embed"
	"log"
	"strings"
)

// The symdb attaches Volatility type descriptors to well-known kernel
// symbols. Each line is a symbol name followed by a JSON type
// descriptor.

//go:embed symdb/dummy.symdb
var symdbAssets embed.FS

const symdbName = "dummy.symdb"

func rawSymdb() []byte {
	raw, err := symdbAssets.ReadFile("symdb/" + symdbName)
	if err != nil {
		panic("BUG: symdb not embedded into executable")
	}
	return raw
}

// AddSymdbTypes adds type information from the embedded database to
// symbols that are already present.
func (b *Builder) AddSymdbTypes() *Builder {
	raw := rawSymdb()

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		name, t, ok := strings.Cut(line, " ")
		if !ok {
			panic("BUG: invalid entry in symdb: " + line)
		}
		if sym, ok := b.s.syms[name]; ok {
			log.Printf("[symdb] name %s, type %s", name, t)
			sym.Type = t
		}
	}

	b.s.rawSymdb = raw
	b.s.symdbName = symdbName
	return b
}
