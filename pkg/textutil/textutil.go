// Package textutil reads and classifies the leading bytes of files found in
// a working copy.
package textutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
)

// SniffLength is how many leading bytes are read to classify a file. It
// matches the window git uses for its binary heuristic.
const SniffLength = 8000

// IsBinary reports whether data holds a NUL byte within the first
// SniffLength bytes. Empty data is text.
func IsBinary(data []byte) bool {
	if len(data) > SniffLength {
		data = data[:SniffLength]
	}

	return bytes.IndexByte(data, 0) >= 0
}

// ReadHead returns at most limit leading bytes of name in fsys. A
// non-positive limit reads SniffLength bytes.
func ReadHead(fsys fs.FS, name string, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = SniffLength
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return head, nil
}

// SniffText returns the head of name and whether it looks like text.
// Unreadable files are reported as not text.
func SniffText(fsys fs.FS, name string) ([]byte, bool) {
	head, err := ReadHead(fsys, name, SniffLength)
	if err != nil {
		return nil, false
	}

	return head, !IsBinary(head)
}
