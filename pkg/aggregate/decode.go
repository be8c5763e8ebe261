package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
)

const (
	// malformedPrefix starts every error recorded for a field that could not
	// be decoded.
	malformedPrefix = "malformed record"

	// maxExactInt is the largest integer a JSON number holds exactly.
	maxExactInt = 1 << 53
)

// DecodeRepositories decodes a JSON array of repository records. Only input
// that is not an array of objects fails with ErrAggregation. A record with
// wrongly typed fields keeps what can be decoded or coerced; every field that
// cannot be is dropped and noted in the record's errors.
func DecodeRepositories(data []byte) ([]collector.Repository, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of repositories", ErrAggregation)
	}

	var elements []json.RawMessage

	decodeErr := json.Unmarshal(trimmed, &elements)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrAggregation, decodeErr)
	}

	repos := make([]collector.Repository, 0, len(elements))

	for i, element := range elements {
		if !isObject(element) {
			return nil, fmt.Errorf("%w: element %d is not a repository object", ErrAggregation, i)
		}

		repos = append(repos, decodeRepository(element))
	}

	return repos, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) > 0 && trimmed[0] == '{'
}

func decodeRepository(raw json.RawMessage) collector.Repository {
	var rec collector.Repository
	if json.Unmarshal(raw, &rec) == nil {
		return rec
	}

	rec = collector.Repository{}

	var fields map[string]json.RawMessage

	_ = json.Unmarshal(raw, &fields)

	problems := decodeFields(fields, map[string]any{
		"name":                   &rec.Name,
		"path":                   &rec.Path,
		"gerrit_host":            &rec.GerritHost,
		"head":                   &rec.Head,
		"last_commit_timestamp":  &rec.LastCommitTimestamp,
		"days_since_last_commit": &rec.DaysSinceLastCommit,
		"is_active":              &rec.IsActive,
		"has_any_commits":        &rec.HasAnyCommits,
		"total_commits_ever":     &rec.TotalCommitsEver,
		"commit_counts":          &rec.CommitCounts,
		"loc_stats":              &rec.LOCStats,
		"unique_contributors":    &rec.UniqueContributors,
		"authors":                &rec.Authors,
		"features":               &rec.Features,
		"github":                 &rec.GitHub,
		"gerrit":                 &rec.Gerrit,
		"jenkins":                &rec.Jenkins,
		"errors":                 &rec.Errors,
	})

	for _, p := range problems {
		rec.Errors = append(rec.Errors, malformedPrefix+": "+p)
	}

	return rec
}

func decodeAuthor(raw json.RawMessage) (collector.AuthorMetrics, []string) {
	var author collector.AuthorMetrics
	if json.Unmarshal(raw, &author) == nil {
		return author, nil
	}

	author = collector.AuthorMetrics{}

	var fields map[string]json.RawMessage

	unmarshalErr := json.Unmarshal(raw, &fields)
	if unmarshalErr != nil {
		return author, []string{": not an author object"}
	}

	problems := decodeFields(fields, map[string]any{
		"name":          &author.Name,
		"email":         &author.Email,
		"username":      &author.Username,
		"domain":        &author.Domain,
		"commits":       &author.Commits,
		"lines_added":   &author.LinesAdded,
		"lines_removed": &author.LinesRemoved,
		"lines_net":     &author.LinesNet,
	})

	return author, problems
}

// decodeFields decodes each known field into its target, coercing numeric
// values where the type allows. Problems are returned in field order.
func decodeFields(fields map[string]json.RawMessage, targets map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, known := targets[name]; known {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	var problems []string

	for _, name := range names {
		for _, p := range decodeField(fields[name], targets[name]) {
			problems = append(problems, name+p)
		}
	}

	return problems
}

func decodeField(raw json.RawMessage, target any) []string {
	switch t := target.(type) {
	case *int:
		n, ok := coerceInt(raw)
		if !ok {
			return []string{": not an integer"}
		}

		*t = n

		return nil
	case **int:
		if string(bytes.TrimSpace(raw)) == "null" {
			*t = nil

			return nil
		}

		n, ok := coerceInt(raw)
		if !ok {
			return []string{": not an integer"}
		}

		*t = &n

		return nil
	case *map[string]int:
		return decodeCountMap(raw, t)
	case *[]collector.AuthorMetrics:
		return decodeAuthors(raw, t)
	}

	unmarshalErr := json.Unmarshal(raw, target)
	if unmarshalErr != nil {
		resetTarget(target)

		return []string{": " + unmarshalErr.Error()}
	}

	return nil
}

func decodeCountMap(raw json.RawMessage, target *map[string]int) []string {
	var values map[string]json.RawMessage

	unmarshalErr := json.Unmarshal(raw, &values)
	if unmarshalErr != nil {
		*target = nil

		return []string{": not a window map"}
	}

	out := make(map[string]int, len(values))

	var problems []string

	for window, value := range values {
		n, ok := coerceInt(value)
		if !ok {
			problems = append(problems, "."+window+": not an integer")

			continue
		}

		out[window] = n
	}

	sort.Strings(problems)
	*target = out

	return problems
}

func decodeAuthors(raw json.RawMessage, target *[]collector.AuthorMetrics) []string {
	var elements []json.RawMessage

	unmarshalErr := json.Unmarshal(raw, &elements)
	if unmarshalErr != nil {
		*target = nil

		return []string{": not a list of authors"}
	}

	authors := make([]collector.AuthorMetrics, 0, len(elements))

	var problems []string

	for i, element := range elements {
		author, authorProblems := decodeAuthor(element)
		for _, p := range authorProblems {
			if strings.HasPrefix(p, ":") {
				problems = append(problems, fmt.Sprintf("[%d]%s", i, p))
			} else {
				problems = append(problems, fmt.Sprintf("[%d].%s", i, p))
			}
		}

		authors = append(authors, author)
	}

	*target = authors

	return problems
}

// coerceInt accepts JSON numbers, truncating fractions, and numeric strings.
func coerceInt(raw json.RawMessage) (int, bool) {
	var value any

	unmarshalErr := json.Unmarshal(raw, &value)
	if unmarshalErr != nil {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return floatToInt(v)
	case string:
		f, parseErr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if parseErr != nil {
			return 0, false
		}

		return floatToInt(f)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxExactInt {
		return 0, false
	}

	return int(math.Trunc(f)), true
}

// resetTarget zeroes a pointer target left half-filled by a failed decode.
func resetTarget(target any) {
	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
