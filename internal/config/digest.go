package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
)

// redacted replaces secret values in resolved settings.
const redacted = "***"

// Digest returns the SHA-256 hex digest of the canonical JSON encoding of
// settings. Map keys are encoded in sorted order, so the digest depends on
// content only, never on the key order of the source files.
func Digest(settings map[string]any) (string, error) {
	canonical, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}

// Digest returns the digest of the resolved, redacted settings.
// Configs built in code digest their struct encoding instead.
func (c *Config) Digest() (string, error) {
	if c.settings == nil {
		canonical, err := json.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("encode config: %w", err)
		}

		sum := sha256.Sum256(canonical)

		return hex.EncodeToString(sum[:]), nil
	}

	return Digest(c.ResolvedSettings())
}

// ResolvedSettings returns a copy of the merged settings with secrets redacted.
func (c *Config) ResolvedSettings() map[string]any {
	resolved := cloneTree(c.settings)

	extensions, _ := resolved["extensions"].(map[string]any)
	githubAPI, _ := extensions["github_api"].(map[string]any)

	if token, ok := githubAPI["token"].(string); ok && token != "" {
		githubAPI["token"] = redacted
	}

	return resolved
}

func cloneTree(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}

	dst := maps.Clone(src)

	for key, value := range dst {
		if nested, ok := value.(map[string]any); ok {
			dst[key] = cloneTree(nested)
		}
	}

	return dst
}
