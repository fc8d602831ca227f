package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const patchedEntry = `{"size": 8, "signed": false, "kind": "int", "endian": "little"}`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readProfile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestPatchInsertsMissingEntry(t *testing.T) {
	path := writeProfile(t, `{"base_types": {}}`)

	require.NoError(t, Patch(path))

	require.JSONEq(t,
		`{"base_types": {"long unsigned int": `+patchedEntry+`}}`,
		readProfile(t, path))
}

func TestPatchOverwritesExistingEntry(t *testing.T) {
	path := writeProfile(t,
		`{"base_types": {"long unsigned int": {"size": 4, "signed": true, "kind": "int", "endian": "big"}}}`)

	require.NoError(t, Patch(path))

	require.JSONEq(t,
		`{"base_types": {"long unsigned int": `+patchedEntry+`}}`,
		readProfile(t, path))
}

func TestPatchPreservesUnrelatedFields(t *testing.T) {
	path := writeProfile(t, `{
		"metadata": {"producer": {"name": "btf2json", "version": "0.1.0"}},
		"base_types": {
			"int": {"size": 4, "signed": true, "kind": "int", "endian": "little"}
		},
		"user_types": {"task_struct": {"kind": "struct", "size": 9792, "fields": {}}},
		"symbols": {"init_task": {"address": 123}}
	}`)

	require.NoError(t, Patch(path))

	require.JSONEq(t, `{
		"metadata": {"producer": {"name": "btf2json", "version": "0.1.0"}},
		"base_types": {
			"int": {"size": 4, "signed": true, "kind": "int", "endian": "little"},
			"long unsigned int": `+patchedEntry+`
		},
		"user_types": {"task_struct": {"kind": "struct", "size": 9792, "fields": {}}},
		"symbols": {"init_task": {"address": 123}}
	}`, readProfile(t, path))
}

func TestPatchIsIdempotent(t *testing.T) {
	path := writeProfile(t, `{"base_types": {}, "enums": {"e": {"size": 4}}}`)

	require.NoError(t, Patch(path))
	once := readProfile(t, path)

	require.NoError(t, Patch(path))
	require.JSONEq(t, once, readProfile(t, path))
}

func TestPatchMissingBaseTypes(t *testing.T) {
	content := `{"user_types": {}}`
	path := writeProfile(t, content)

	require.ErrorIs(t, Patch(path), ErrSchema)
	require.Equal(t, content, readProfile(t, path))
}

func TestPatchBaseTypesNotObject(t *testing.T) {
	path := writeProfile(t, `{"base_types": 42}`)

	require.ErrorIs(t, Patch(path), ErrSchema)
}

func TestPatchBaseTypesNull(t *testing.T) {
	content := `{"base_types": null}`
	path := writeProfile(t, content)

	require.ErrorIs(t, Patch(path), ErrSchema)
	require.Equal(t, content, readProfile(t, path))
}

func TestPatchRootNotObject(t *testing.T) {
	path := writeProfile(t, `[1, 2, 3]`)

	require.ErrorIs(t, Patch(path), ErrSchema)
}

func TestPatchInvalidJSON(t *testing.T) {
	content := `{"base_types": `
	path := writeProfile(t, content)

	require.ErrorIs(t, Patch(path), ErrParse)
	require.Equal(t, content, readProfile(t, path))
}

func TestPatchNonexistentFile(t *testing.T) {
	err := Patch(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrFileAccess)
}
