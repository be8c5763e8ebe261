package features

import (
	"context"
	"io/fs"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	typeJJB           = "jjb"
	typeDocumentation = "documentation"

	fixedConfidence = 100
	docsConfidence  = 50
	minDocIndicator = 5
)

// projectType maps a type to the marker files or glob patterns that identify it.
type projectType struct {
	name     string
	patterns []string
}

var projectTypes = []projectType{
	{"maven", []string{"pom.xml"}},
	{"gradle", []string{"build.gradle", "build.gradle.kts", "gradle.properties", "settings.gradle"}},
	{"node", []string{"package.json"}},
	{"python", []string{"pyproject.toml", "requirements.txt", "setup.py", "setup.cfg", "Pipfile", "poetry.lock"}},
	{"docker", []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"}},
	{"go", []string{"go.mod", "go.sum"}},
	{"rust", []string{"Cargo.toml", "Cargo.lock"}},
	{"java", []string{"build.xml", "ivy.xml"}},
	{"c_cpp", []string{"Makefile", "CMakeLists.txt", "configure.ac", "configure.in"}},
	{"dotnet", []string{"*.csproj", "*.sln", "project.json", "*.vbproj", "*.fsproj"}},
	{"ruby", []string{"Gemfile", "Rakefile", "*.gemspec"}},
	{"php", []string{"composer.json", "composer.lock"}},
	{"scala", []string{"build.sbt", "project/build.properties"}},
	{"swift", []string{"Package.swift"}},
	{"kotlin", []string{"build.gradle.kts"}},
}

// TypeDetail is one detected project type.
type TypeDetail struct {
	Type       string   `json:"type"`
	Files      []string `json:"files"`
	Confidence int      `json:"confidence"`
}

func checkProjectTypes(_ context.Context, t Target) (Result, error) {
	if strings.ToLower(t.Name) == "ci-management" {
		return projectTypesResult([]TypeDetail{{Type: typeJJB, Files: []string{"repository_name"}, Confidence: fixedConfidence}}), nil
	}

	var details []TypeDetail

	for _, pt := range projectTypes {
		var matches []string

		for _, pattern := range pt.patterns {
			if !strings.Contains(pattern, "*") {
				if exists(t.FS, pattern) {
					matches = append(matches, pattern)
				}

				continue
			}

			found, err := doublestar.Glob(t.FS, pattern)
			if err != nil {
				continue
			}

			for _, f := range found {
				matches = append(matches, baseName(f))
			}
		}

		if len(matches) > 0 {
			details = append(details, TypeDetail{Type: pt.name, Files: matches, Confidence: len(matches)})
		}
	}

	if len(details) == 0 && isDocumentationRepository(t) {
		return projectTypesResult([]TypeDetail{{Type: typeDocumentation, Files: docIndicators(t.FS), Confidence: docsConfidence}}), nil
	}

	return projectTypesResult(details), nil
}

// projectTypesResult picks the highest-confidence type as primary; the
// earliest declared type wins a tie.
func projectTypesResult(details []TypeDetail) Result {
	types := make([]string, 0, len(details))

	var (
		primary any
		best    int
	)

	for _, d := range details {
		types = append(types, d.Type)

		if d.Confidence > best {
			best = d.Confidence
			primary = d.Type
		}
	}

	if details == nil {
		details = []TypeDetail{}
	}

	return Result{
		KeyPresent:       len(details) > 0,
		"detected_types": types,
		"primary_type":   primary,
		"details":        details,
	}
}

var strongDocNames = []string{"documentation", "manual", "wiki", "guide", "tutorial"}

func isDocumentationRepository(t Target) bool {
	name := strings.ToLower(t.Name)

	for _, pattern := range strongDocNames {
		if name == pattern || strings.HasSuffix(name, "-"+pattern) {
			return true
		}
	}

	if name == "doc" || name == "docs" {
		return true
	}

	return len(docIndicators(t.FS)) >= minDocIndicator
}

var (
	docFiles = []string{
		"README.md", "README.rst", "README.txt", "DOCS.md", "DOCUMENTATION.md",
		"index.md", "index.rst", "index.html", "sphinx.conf", "conf.py",
		"mkdocs.yml", "_config.yml", "Gemfile",
	}
	docDirs       = []string{"docs", "doc", "documentation", "_docs", "manual", "guides", "tutorials"}
	docExtensions = []string{".md", ".rst", ".adoc", ".txt"}
	docGenerators = []string{".gitbook", "_config.yml", "mkdocs.yml", "conf.py", "book.toml", "docusaurus.config.js"}
)

func docIndicators(fsys fs.FS) []string {
	indicators := existing(fsys, docFiles)

	for _, dir := range docDirs {
		if isDir(fsys, dir) {
			indicators = append(indicators, dir+"/")
		}
	}

	for _, ext := range docExtensions {
		matches, err := fs.Glob(fsys, "*"+ext)
		if err == nil && len(matches) > 0 {
			indicators = append(indicators, "*"+ext)
		}
	}

	for _, gen := range docGenerators {
		if exists(fsys, gen) && !slices.Contains(indicators, gen) {
			indicators = append(indicators, gen)
		}
	}

	return indicators
}
