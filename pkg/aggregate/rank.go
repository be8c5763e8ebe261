package aggregate

import (
	"cmp"
	"slices"
	"strings"
)

// MissingDaysSortValue stands in for a null days_since_last_commit so that
// repositories without a known last commit sort as the oldest.
const MissingDaysSortValue = 999999

const daysSinceLastCommitPath = "days_since_last_commit"

// nameKeys are tried in order to find the tie-break name of an entity.
var nameKeys = []string{"name", "gerrit_project", "domain", "email"}

// identityKeys break ties between entities sharing a name.
var identityKeys = []string{"email", "domain", "path"}

// Entity is anything that can be ranked.
type Entity interface {
	Tree() Value
}

// Rank sorts entities by the number found at the dotted path, descending when
// reverse is set. Missing and non-numeric values count as zero. Ties are
// always broken by ascending name, then by email, domain and path, so the
// result does not depend on input order. The input slice is not modified.
func Rank[T Entity](entities []T, path string, reverse bool) []T {
	return RankN(entities, path, reverse, 0)
}

// RankN is Rank capped at limit entries. A non-positive limit keeps all.
func RankN[T Entity](entities []T, path string, reverse bool, limit int) []T {
	type keyed struct {
		entity T
		value  float64
		name   string
		ident  string
	}

	ranked := make([]keyed, len(entities))

	for i, entity := range entities {
		tree := entity.Tree()
		ranked[i] = keyed{entity: entity, value: SortValue(tree, path), name: EntityName(tree), ident: identityKey(tree)}
	}

	slices.SortStableFunc(ranked, func(a, b keyed) int {
		byValue := cmp.Compare(a.value, b.value)
		if reverse {
			byValue = -byValue
		}

		if byValue != 0 {
			return byValue
		}

		return cmp.Or(strings.Compare(a.name, b.name), strings.Compare(a.ident, b.ident))
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]T, len(ranked))
	for i, k := range ranked {
		out[i] = k.entity
	}

	return out
}

// SortValue resolves the ranking key of tree at path.
func SortValue(tree Value, path string) float64 {
	v, found := tree.Lookup(path)
	if found && v.IsNull() && path == daysSinceLastCommitPath {
		return MissingDaysSortValue
	}

	f, ok := v.Float()
	if !ok {
		return 0
	}

	return f
}

// EntityName returns the first non-empty identifying string of tree.
func EntityName(tree Value) string {
	for _, key := range nameKeys {
		if s, ok := tree.Get(key).Str(); ok && s != "" {
			return s
		}
	}

	return ""
}

func identityKey(tree Value) string {
	parts := make([]string, len(identityKeys))
	for i, key := range identityKeys {
		parts[i], _ = tree.Get(key).Str()
	}

	return strings.Join(parts, "\x00")
}
