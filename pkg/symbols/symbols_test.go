package symbols

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "System.map")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newMapBuilder(t *testing.T, content string) *Builder {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.SetBaseOffset(ArchX8664))
	require.NoError(t, b.AddSystemMap(writeMap(t, content)))
	return b
}

func TestAddSystemMap(t *testing.T) {
	syms := newMapBuilder(t,
		"ffffffff81000000 T _stext\n"+
			"ffffffff81000010 T start_kernel\n"+
			"ffffffff82000000 D init_task\n"+
			"ffffffff82000100 d local_thing\n").Build()

	assert.Equal(t, 4, syms.Len())

	addr, ok := syms.Addr("start_kernel")
	require.True(t, ok)
	assert.Equal(t, uint64(0xffffffff81000010), addr)

	require.Contains(t, syms.All(), "local_thing")
	assert.Equal(t, ScopeLocal, syms.All()["local_thing"].Scope)
	assert.Equal(t, ScopeGlobal, syms.All()["init_task"].Scope)

	_, name, ok := syms.MapSource()
	require.True(t, ok)
	assert.Equal(t, "System.map", name)
}

func TestKASLRShiftIsRemoved(t *testing.T) {
	// map taken from a kernel loaded 0x1000000 above the default base
	syms := newMapBuilder(t,
		"ffffffff82000000 T _stext\n"+
			"ffffffff82000010 T start_kernel\n").Build()

	addr, ok := syms.Addr("start_kernel")
	require.True(t, ok)
	assert.Equal(t, uint64(0xffffffff81000010), addr)

	addr, ok = syms.Addr("_stext")
	require.True(t, ok)
	assert.Equal(t, uint64(0xffffffff81000000), addr)
}

func TestAmbiguousNamesAreDropped(t *testing.T) {
	syms := newMapBuilder(t,
		"ffffffff81000000 T _stext\n"+
			"ffffffff81000010 t dup\n"+
			"ffffffff81000020 t dup\n"+
			"ffffffff81000030 t dup\n").Build()

	assert.Equal(t, 1, syms.Len())
	_, ok := syms.Addr("dup")
	assert.False(t, ok)
}

func TestSystemMapErrors(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetBaseOffset(ArchX8664))

	err := b.AddSystemMap(writeMap(t, "not a system map\n"))
	assert.ErrorIs(t, err, ErrMapCorrupted)

	err = b.AddSystemMap(writeMap(t, "zzzz T broken\n"))
	assert.ErrorIs(t, err, ErrMapCorrupted)

	err = b.AddSystemMap(writeMap(t, "ffffffff81000000 X weird\n"))
	assert.ErrorIs(t, err, ErrMapCorrupted)

	err = b.AddSystemMap(writeMap(t, "ffffffff81000010 T start_kernel\n"))
	assert.ErrorIs(t, err, ErrNoStext)

	err = b.AddSystemMap(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestBaseOffsets(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetBaseOffset(ArchX8664))
	assert.Equal(t, uint64(0xffffffff81000000), b.s.baseOffset)

	require.NoError(t, b.SetBaseOffset(ArchArm64))
	assert.Equal(t, uint64(0xffff800080010000), b.s.baseOffset)

	assert.ErrorIs(t, b.SetBaseOffset(Arch("riscv")), ErrUnknownArch)
}

func TestAddBTFTypesLeavesSymbolsUntouched(t *testing.T) {
	b := newMapBuilder(t,
		"ffffffff81000000 T _stext\n"+
			"ffffffff82000000 D init_task\n")
	syms := b.AddSymdbTypes().AddBTFTypes(nil).Build()

	assert.Equal(t, 2, syms.Len())
	assert.Equal(t, 1, syms.WithTypes())
	assert.JSONEq(t, `{"kind":"struct","name":"task_struct"}`,
		syms.All()["init_task"].Type)
}

func TestAddBanner(t *testing.T) {
	const banner = "Linux version 6.8.0 (gcc 13.2.0) #1 SMP"

	b := newMapBuilder(t,
		"ffffffff81000000 T _stext\n"+
			"ffffffff81e00000 R linux_banner\n")
	require.NoError(t, b.AddBanner(banner))

	sym := b.Build().All()["linux_banner"]
	decoded, err := base64.StdEncoding.DecodeString(sym.ConstantData)
	require.NoError(t, err)
	assert.Equal(t, banner, string(decoded))
}

func TestAddBannerWithoutSymbol(t *testing.T) {
	b := newMapBuilder(t, "ffffffff81000000 T _stext\n")
	assert.ErrorIs(t, b.AddBanner("Linux version 6.8.0"), ErrNoBannerSym)
}

func TestAddSymdbTypes(t *testing.T) {
	b := newMapBuilder(t,
		"ffffffff81000000 T _stext\n"+
			"ffffffff82000000 D init_task\n"+
			"ffffffff82001000 D some_unknown_symbol\n")
	syms := b.AddSymdbTypes().Build()

	assert.Equal(t, 1, syms.WithTypes())
	assert.JSONEq(t, `{"kind":"struct","name":"task_struct"}`,
		syms.All()["init_task"].Type)
	assert.Empty(t, syms.All()["some_unknown_symbol"].Type)

	raw, name, ok := syms.SymdbSource()
	require.True(t, ok)
	assert.Equal(t, "dummy.symdb", name)
	assert.NotEmpty(t, raw)
}
