package report

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidSnapshot indicates a snapshot that does not match the schema.
var ErrInvalidSnapshot = errors.New("snapshot does not match schema")

//go:embed snapshot-schema.json
var snapshotSchema []byte

// SnapshotSchema returns the embedded JSON schema of report_raw.json.
func SnapshotSchema() []byte {
	return snapshotSchema
}

// ValidateSnapshot checks raw snapshot JSON against the embedded schema.
// Schema violations are listed in the returned error.
func ValidateSnapshot(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(snapshotSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(problems, "; "))
}
