package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState is a struct for codec testing.
type testState struct {
	Name   string         `json:"name"`
	Count  int            `json:"count"`
	Values map[string]int `json:"values"`
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{Indent: ""}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, testState{Name: "compact", Count: 1}))

	// Compact JSON has at most one trailing newline (from json.Encoder).
	assert.LessOrEqual(t, strings.Count(buf.String(), "\n"), 1)
}

func TestJSONCodec_PrettyPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, testState{Name: "pretty", Count: 1}))

	assert.Contains(t, buf.String(), defaultIndent)
}

func TestJSONCodec_NoHTMLEscaping(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, testState{Name: "<a & b>"}))

	assert.Contains(t, buf.String(), "<a & b>")
}

func TestJSONCodec_DecodeError(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewJSONCodec().Decode(strings.NewReader("not valid json{{{"), &decoded)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "json decode")
}

func TestLZ4Codec_CompressesAndRestores(t *testing.T) {
	t.Parallel()

	codec := NewLZ4Codec(nil)
	assert.Equal(t, ".json.lz4", codec.Extension())

	original := testState{Name: strings.Repeat("repetitive ", 200), Count: 7, Values: map[string]int{"x": 1}}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))
	assert.Less(t, buf.Len(), len(original.Name))

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLZ4Codec_DecodeGarbage(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewLZ4Codec(nil).Decode(strings.NewReader("definitely not lz4"), &decoded)
	require.Error(t, err)
}

func TestSaveState_WritesAtomically(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "out")

	path, err := SaveState(dir, "state", NewJSONCodec(), testState{Name: "saved"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state.json"), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())

	var loaded testState

	require.NoError(t, LoadState(dir, "state", NewJSONCodec(), &loaded))
	assert.Equal(t, "saved", loaded.Name)
}

func TestLoadState_FileNotFound(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := LoadState(t.TempDir(), "missing", NewJSONCodec(), &decoded)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open state file")
}

func TestLoadState_DecodeError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{invalid"), 0o600))

	var decoded testState

	err := LoadState(dir, "bad", NewJSONCodec(), &decoded)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode state")
}
