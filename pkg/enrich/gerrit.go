package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Gerrit project states that mark a project as archived.
const (
	GerritStateActive   = "ACTIVE"
	GerritStateReadOnly = "READ_ONLY"
	GerritStateHidden   = "HIDDEN"
)

// gerritAPIPaths are the mount points tried when discovering a Gerrit REST API.
var gerritAPIPaths = []string{"", "/r", "/gerrit", "/infra", "/a"}

var (
	// ErrGerritAPI wraps failed Gerrit calls.
	ErrGerritAPI = errors.New("gerrit api error")
	// ErrGerritDiscovery indicates no candidate path served the projects API.
	ErrGerritDiscovery = errors.New("could not discover gerrit api endpoint")
)

// GerritProject is the project description returned by the Gerrit REST API.
type GerritProject struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Parent      string `json:"parent,omitempty"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
}

// Archived reports whether the project is read-only or hidden.
func (p GerritProject) Archived() bool {
	return p.State == GerritStateReadOnly || p.State == GerritStateHidden
}

// GerritConfig configures Gerrit.
type GerritConfig struct {
	// Host is the Gerrit server name, e.g. gerrit.example.org.
	Host string
	// BaseURL skips discovery when set.
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Gerrit reads project metadata from a Gerrit server.
type Gerrit struct {
	rest    *restClient
	logger  *slog.Logger
	baseURL string
}

// NewGerrit creates a client, discovering the API mount point on
// https://<host> unless cfg.BaseURL is set.
func NewGerrit(ctx context.Context, cfg GerritConfig, stats *Stats, logger *slog.Logger) (*Gerrit, error) {
	stats, logger = withDefaults(stats, logger)
	client := newHTTPClient(cfg.Timeout)

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		if cfg.Host == "" {
			return nil, fmt.Errorf("%w: no host configured", ErrGerritDiscovery)
		}

		discovered, err := DiscoverGerrit(ctx, client, "https://"+cfg.Host)
		if err != nil {
			return nil, err
		}

		base = discovered
	}

	logger.Info("gerrit api", "base_url", base)

	return &Gerrit{
		rest:    &restClient{http: client, limiter: newLimiter(cfg.RateLimit, cfg.RateBurst), stats: stats, api: APIGerrit},
		logger:  logger,
		baseURL: base,
	}, nil
}

// BaseURL returns the API root in use.
func (g *Gerrit) BaseURL() string {
	return g.baseURL
}

// DiscoverGerrit finds the API root under root. A same-host redirect from
// root is tried first, then the well-known mount points. A candidate is
// accepted when its projects listing decodes as a JSON object.
func DiscoverGerrit(ctx context.Context, client *http.Client, root string) (string, error) {
	root = strings.TrimSuffix(root, "/")

	paths := gerritAPIPaths
	if redirect := redirectPath(ctx, client, root); redirect != "" {
		paths = []string{redirect}

		for _, p := range gerritAPIPaths {
			if p != redirect {
				paths = append(paths, p)
			}
		}
	}

	for _, p := range paths {
		if servesProjects(ctx, client, root+p) {
			return root + p, nil
		}
	}

	return "", fmt.Errorf("%w: %s (tried %q)", ErrGerritDiscovery, root, paths)
}

func redirectPath(ctx context.Context, client *http.Client, root string) string {
	noFollow := *client
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root, nil)
	if err != nil {
		return ""
	}

	resp, err := noFollow.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusMultipleChoices || resp.StatusCode >= http.StatusBadRequest {
		return ""
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return ""
	}

	rootURL, err := url.Parse(root)
	if err != nil || (location.Host != "" && location.Host != rootURL.Host) {
		return ""
	}

	path := strings.TrimSuffix(location.Path, "/")
	if path == "" {
		return ""
	}

	return path
}

func servesProjects(ctx context.Context, client *http.Client, base string) bool {
	status, body, err := fetch(ctx, client, base+"/projects/?d")
	if err != nil || status != http.StatusOK {
		return false
	}

	var listing map[string]json.RawMessage

	return decodeGerrit(body, &listing) == nil
}

// Projects lists every project keyed by name.
func (g *Gerrit) Projects(ctx context.Context) (map[string]GerritProject, error) {
	status, body, err := g.rest.get(ctx, g.baseURL+"/projects/?d")
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %w", ErrGerritAPI, err)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: list projects: status %d", ErrGerritAPI, status)
	}

	var projects map[string]GerritProject

	decodeErr := decodeGerrit(body, &projects)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode projects: %w", ErrGerritAPI, decodeErr)
	}

	for name, p := range projects {
		if p.Name == "" {
			p.Name = name
			projects[name] = p
		}
	}

	g.logger.Info("fetched gerrit projects", "count", len(projects))

	return projects, nil
}

// Project returns one project. found is false when Gerrit does not know it.
func (g *Gerrit) Project(ctx context.Context, name string) (project GerritProject, found bool, err error) {
	status, body, err := g.rest.get(ctx, g.baseURL+"/projects/"+url.PathEscape(name)+"?d")
	if err != nil {
		return GerritProject{}, false, fmt.Errorf("%w: get project %s: %w", ErrGerritAPI, name, err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		g.logger.Debug("project not found in gerrit", "project", name)

		return GerritProject{}, false, nil
	default:
		return GerritProject{}, false, fmt.Errorf("%w: get project %s: status %d", ErrGerritAPI, name, status)
	}

	decodeErr := decodeGerrit(body, &project)
	if decodeErr != nil {
		return GerritProject{}, false, fmt.Errorf("%w: decode project %s: %w", ErrGerritAPI, name, decodeErr)
	}

	if project.Name == "" {
		project.Name = name
	}

	return project, true, nil
}
