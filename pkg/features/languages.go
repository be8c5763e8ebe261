package features

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/repopulse/pkg/textutil"
)

// maxLanguageFiles caps how many files the languages check classifies.
const maxLanguageFiles = 20000

// LanguageShare is the file count detected for one language.
type LanguageShare struct {
	Language string `json:"language"`
	Files    int    `json:"files"`
}

// checkLanguages classifies files by extension and content. Vendored trees
// and dot directories are skipped.
func checkLanguages(ctx context.Context, t Target) (Result, error) {
	counts := map[string]int{}
	seen := 0

	walkErr := fs.WalkDir(t.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p == "." {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || enry.IsVendor(p) {
			if d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		seen++
		if seen > maxLanguageFiles {
			return fs.SkipAll
		}

		lang := detectLanguage(t.FS, p)
		if lang != "" {
			counts[lang]++
		}

		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	shares := make([]LanguageShare, 0, len(counts))
	for lang, n := range counts {
		shares = append(shares, LanguageShare{Language: lang, Files: n})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Files != shares[j].Files {
			return shares[i].Files > shares[j].Files
		}

		return shares[i].Language < shares[j].Language
	})

	var primary any
	if len(shares) > 0 {
		primary = shares[0].Language
	}

	return Result{KeyPresent: len(shares) > 0, "primary": primary, "languages": shares}, nil
}

// detectLanguage tries the file name first and falls back to the file head.
// Binary files have no language.
func detectLanguage(fsys fs.FS, name string) string {
	base := path.Base(name)

	if lang := enry.GetLanguage(base, nil); lang != "" {
		return lang
	}

	head, text := textutil.SniffText(fsys, name)
	if !text || len(head) == 0 {
		return ""
	}

	return enry.GetLanguage(base, head)
}
