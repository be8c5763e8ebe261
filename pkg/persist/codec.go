// Package persist provides codec-based file persistence for report artifacts
// and cached repository scans.
package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	lz4Extension  = ".lz4"
)

// Default indentation for pretty-printed JSON.
const defaultIndent = "  "

// File modes for written artifacts.
const (
	dirMode  = 0o755
	fileMode = 0o644
)

// Codec defines how state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec (e.g., ".json", ".json.lz4").
	Extension() string
}

// JSONCodec implements Codec using JSON encoding with optional indentation.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty string means compact JSON.
	Indent string
	// EscapeHTML keeps encoding/json's default <, > and & escaping when set.
	EscapeHTML bool
}

// NewJSONCodec creates a JSON codec with pretty-printing (2-space indent).
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(c.EscapeHTML)

	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	decoder := json.NewDecoder(r)

	err := decoder.Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// LZ4Codec compresses the output of an inner codec with the LZ4 frame format.
type LZ4Codec struct {
	inner Codec
}

// NewLZ4Codec wraps inner; a nil inner selects compact JSON.
func NewLZ4Codec(inner Codec) *LZ4Codec {
	if inner == nil {
		inner = &JSONCodec{}
	}

	return &LZ4Codec{inner: inner}
}

// Encode implements Codec.Encode.
func (c *LZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	encodeErr := c.inner.Encode(zw, state)
	if encodeErr != nil {
		return encodeErr
	}

	closeErr := zw.Close()
	if closeErr != nil {
		return fmt.Errorf("lz4 flush: %w", closeErr)
	}

	return nil
}

// Decode implements Codec.Decode.
func (c *LZ4Codec) Decode(r io.Reader, state any) error {
	return c.inner.Decode(lz4.NewReader(r), state)
}

// Extension implements Codec.Extension.
func (c *LZ4Codec) Extension() string {
	return c.inner.Extension() + lz4Extension
}

// SaveState saves the given state to a file in the specified directory.
// The filename is constructed from the basename and the codec's extension.
// The file is written to a temporary name first and renamed into place.
func SaveState(dir, basename string, codec Codec, state any) (string, error) {
	mkdirErr := os.MkdirAll(dir, dirMode)
	if mkdirErr != nil {
		return "", fmt.Errorf("create state dir: %w", mkdirErr)
	}

	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.CreateTemp(dir, "."+basename+"-*")
	if err != nil {
		return "", fmt.Errorf("create state file: %w", err)
	}

	tmp := file.Name()

	err = codec.Encode(file, state)
	if err != nil {
		file.Close()
		os.Remove(tmp)

		return "", fmt.Errorf("encode state: %w", err)
	}

	err = file.Close()
	if err != nil {
		os.Remove(tmp)

		return "", fmt.Errorf("close state file: %w", err)
	}

	err = os.Chmod(tmp, fileMode)
	if err == nil {
		err = os.Rename(tmp, path)
	}

	if err != nil {
		os.Remove(tmp)

		return "", fmt.Errorf("move state file: %w", err)
	}

	return path, nil
}

// LoadState loads state from a file in the specified directory.
// The filename is constructed from the basename and the codec's extension.
// The state parameter must be a pointer to the target struct.
func LoadState(dir, basename string, codec Codec, state any) error {
	filename := basename + codec.Extension()
	path := filepath.Join(dir, filename)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
