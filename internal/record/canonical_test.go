package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"b": int64(2),
		"a": "x",
		"c": map[string]any{"z": true, "y": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":{"y":false,"z":true}}`, string(out))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"cmd": "a < b && c > d"})
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"a < b && c > d"}`, string(out))
}

func TestMarshalCanonicalBytesAsBase64(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"n": []byte{0xff, 0x00}})
	require.NoError(t, err)
	assert.Equal(t, `{"n":"/wA="}`, string(out))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"null", nil},
		{"float", 1.5},
		{"unsupported", struct{}{}},
		{"nested float", map[string]any{"f": 2.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.value)
			assert.Error(t, err)
		})
	}
}
