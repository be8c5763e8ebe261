package identity

import (
	"strings"
)

// orgDomainLabels is how many trailing labels identify an organization.
const orgDomainLabels = 2

// DomainMapper folds host names such as users.noreply.github.com into
// organization domains such as github.com.
type DomainMapper struct {
	preserve map[string]struct{}
	mappings map[string]string
}

// NewDomainMapper builds a mapper. Domains in preserve are kept whole;
// custom mappings take precedence over label folding.
func NewDomainMapper(preserve []string, mappings map[string]string) *DomainMapper {
	m := &DomainMapper{
		preserve: make(map[string]struct{}, len(preserve)),
		mappings: make(map[string]string, len(mappings)),
	}

	for _, d := range preserve {
		m.preserve[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	for from, to := range mappings {
		m.mappings[strings.ToLower(strings.TrimSpace(from))] = to
	}

	return m
}

// Fold returns the organization domain for a full email domain.
// A nil mapper returns the domain unchanged.
func (m *DomainMapper) Fold(domain string) string {
	if m == nil {
		return domain
	}

	switch domain {
	case "", "unknown", "localhost":
		return domain
	}

	if _, ok := m.preserve[domain]; ok {
		return domain
	}

	if mapped, ok := m.mappings[domain]; ok {
		return mapped
	}

	labels := strings.Split(domain, ".")
	if len(labels) <= orgDomainLabels {
		return domain
	}

	return strings.Join(labels[len(labels)-orgDomainLabels:], ".")
}

// IsUnknownDomain reports whether a domain carries no organization.
func IsUnknownDomain(domain string) bool {
	switch domain {
	case "", "unknown", "localhost":
		return true
	default:
		return false
	}
}
