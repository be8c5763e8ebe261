// Package gitlog extracts commit records from a Git working copy.
package gitlog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// LogFormat is the pretty format the parser expects in every header line.
const LogFormat = "%H|%ad|%an|%ae|%s"

const (
	headerParts   = 5
	numstatParts  = 3
	binaryMarker  = "-"
	minHashLength = 7
	maxLineBytes  = 16 << 20
	initLineBytes = 64 << 10
)

// Accepted author date layouts, most specific first.
var dateLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FileChange is one numstat row.
type FileChange struct {
	Filename string `json:"filename"`
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
}

// Commit is one parsed commit block.
type Commit struct {
	Hash         string       `json:"hash"`
	AuthorName   string       `json:"author_name"`
	AuthorEmail  string       `json:"author_email"`
	Date         time.Time    `json:"date"`
	Subject      string       `json:"subject"`
	FilesChanged []FileChange `json:"files_changed"`
}

// Added returns the lines added across all files.
func (c Commit) Added() int {
	total := 0
	for _, f := range c.FilesChanged {
		total += f.Added
	}

	return total
}

// Removed returns the lines removed across all files.
func (c Commit) Removed() int {
	total := 0
	for _, f := range c.FilesChanged {
		total += f.Removed
	}

	return total
}

// ParseOptions tunes Parse.
type ParseOptions struct {
	// SkipBinary drops numstat rows for binary files instead of counting them as 0/0.
	SkipBinary bool
}

// Parse reads `git log --numstat --date=iso --pretty=format:` + LogFormat output.
// Malformed numstat rows are ignored. A commit whose date does not parse is
// dropped together with its numstat rows and reported in the warnings.
func Parse(r io.Reader, opts ParseOptions) ([]Commit, []string) {
	var (
		commits  []Commit
		warnings []string
		current  *Commit
		skipping bool
	)

	flush := func() {
		if current != nil {
			commits = append(commits, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initLineBytes), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if parts, ok := splitHeader(line); ok {
			flush()

			date, dateErr := parseDate(parts[1])
			if dateErr != nil {
				warnings = append(warnings, fmt.Sprintf("invalid date %q in commit %s", parts[1], parts[0]))
				skipping = true

				continue
			}

			skipping = false
			current = &Commit{
				Hash:         parts[0],
				Date:         date,
				AuthorName:   parts[2],
				AuthorEmail:  parts[3],
				Subject:      parts[4],
				FilesChanged: []FileChange{},
			}

			continue
		}

		if skipping || current == nil {
			continue
		}

		change, ok := parseNumstat(line, opts)
		if ok {
			current.FilesChanged = append(current.FilesChanged, change)
		}
	}

	flush()

	if scanErr := scanner.Err(); scanErr != nil {
		warnings = append(warnings, fmt.Sprintf("read git log: %v", scanErr))
	}

	return commits, warnings
}

func splitHeader(line string) ([]string, bool) {
	if strings.Count(line, "|") < headerParts-1 {
		return nil, false
	}

	parts := strings.SplitN(line, "|", headerParts)
	if !isHash(parts[0]) {
		return nil, false
	}

	return parts, true
}

func isHash(s string) bool {
	if len(s) < minHashLength {
		return false
	}

	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}

	return true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	var lastErr error

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}

		lastErr = err
	}

	return time.Time{}, lastErr
}

func parseNumstat(line string, opts ParseOptions) (FileChange, bool) {
	parts := strings.SplitN(line, "\t", numstatParts)
	if len(parts) < numstatParts {
		return FileChange{}, false
	}

	binary := parts[0] == binaryMarker || parts[1] == binaryMarker
	if binary {
		if opts.SkipBinary {
			return FileChange{}, false
		}

		return FileChange{Filename: parts[2]}, true
	}

	added, addErr := strconv.Atoi(parts[0])
	removed, remErr := strconv.Atoi(parts[1])

	if addErr != nil || remErr != nil || added < 0 || removed < 0 {
		return FileChange{}, false
	}

	return FileChange{Filename: parts[2], Added: added, Removed: removed}, true
}
