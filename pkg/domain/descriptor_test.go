package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, d *Descriptor) string {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	return string(raw)
}

func TestDescriptorMarshalShapes(t *testing.T) {
	assert.JSONEq(t, `{"kind":"base","name":"int"}`,
		marshal(t, &Descriptor{Kind: DescBase, Name: "int"}))

	assert.JSONEq(t, `{"kind":"function"}`,
		marshal(t, &Descriptor{Kind: DescFunction}))

	assert.JSONEq(t, `{"kind":"pointer","subtype":{"kind":"struct","name":"foo"}}`,
		marshal(t, &Descriptor{
			Kind:    DescPointer,
			Subtype: &Descriptor{Kind: DescStruct, Name: "foo"},
		}))

	// a zero count must not be dropped
	assert.JSONEq(t, `{"kind":"array","count":0,"subtype":{"kind":"base","name":"char"}}`,
		marshal(t, &Descriptor{
			Kind:    DescArray,
			Subtype: &Descriptor{Kind: DescBase, Name: "char"},
		}))

	// a zero bit position must not be dropped either
	assert.JSONEq(t, `{"kind":"bitfield","bit_position":0,"bit_length":3,"type":{"kind":"base","name":"int"}}`,
		marshal(t, &Descriptor{
			Kind:      DescBitfield,
			BitLength: 3,
			Type:      &Descriptor{Kind: DescBase, Name: "int"},
		}))
}

func TestDescriptorUnmarshal(t *testing.T) {
	var d Descriptor
	require.NoError(t, json.Unmarshal(
		[]byte(`{"kind":"pointer","subtype":{"kind":"array","count":4,"subtype":{"kind":"enum","name":"e"}}}`), &d))

	assert.Equal(t, DescPointer, d.Kind)
	require.NotNil(t, d.Subtype)
	assert.Equal(t, uint64(4), d.Subtype.Count)
}

func TestDescriptorLeaf(t *testing.T) {
	leaf := &Descriptor{Kind: DescUnion, Name: "u"}
	d := &Descriptor{
		Kind: DescPointer,
		Subtype: &Descriptor{
			Kind:    DescArray,
			Count:   2,
			Subtype: &Descriptor{Kind: DescBitfield, BitLength: 1, Type: leaf},
		},
	}

	assert.Same(t, leaf, d.Leaf())
	assert.Equal(t, "union", d.Leaf().Label())
	assert.Equal(t, "", Void().Label())
}
