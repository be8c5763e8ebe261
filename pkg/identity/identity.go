// Package identity normalizes commit author signatures and folds email
// domains into organizations.
package identity

import (
	"strings"
)

const (
	// UnknownName replaces an empty author name.
	UnknownName = "Unknown"
	// DefaultPlaceholderEmail replaces a missing or malformed author email.
	DefaultPlaceholderEmail = "unknown@unknown"
)

// Author is a normalized author signature.
type Author struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

// Normalizer converts raw signatures into Author values.
type Normalizer struct {
	placeholder string
	domains     *DomainMapper
}

// NewNormalizer creates a Normalizer. An empty placeholder selects
// DefaultPlaceholderEmail; a nil mapper keeps raw email domains.
func NewNormalizer(placeholder string, domains *DomainMapper) *Normalizer {
	if placeholder == "" {
		placeholder = DefaultPlaceholderEmail
	}

	return &Normalizer{placeholder: strings.ToLower(placeholder), domains: domains}
}

// Placeholder returns the email that stands in for unknown authors.
func (n *Normalizer) Placeholder() string {
	return n.placeholder
}

// IsPlaceholder reports whether email is the unknown-author placeholder.
func (n *Normalizer) IsPlaceholder(email string) bool {
	return email == n.placeholder
}

// Normalize trims and lower-cases a raw signature. The email must look like
// local@domain; the local part may itself contain '@'. Username and domain
// split on the last '@', and the domain is then folded by the mapper.
func (n *Normalizer) Normalize(name, email string) Author {
	cleanName := strings.TrimSpace(name)
	if cleanName == "" {
		cleanName = UnknownName
	}

	cleanEmail := strings.ToLower(strings.TrimSpace(email))
	if !wellFormed(cleanEmail) {
		cleanEmail = n.placeholder
	}

	username, domain := splitEmail(cleanEmail)

	return Author{
		Name:     cleanName,
		Email:    cleanEmail,
		Username: username,
		Domain:   n.domains.Fold(domain),
	}
}

func wellFormed(email string) bool {
	at := strings.LastIndexByte(email, '@')

	return at > 0 && at < len(email)-1
}

func splitEmail(email string) (username, domain string) {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email, ""
	}

	return email[:at], email[at+1:]
}
