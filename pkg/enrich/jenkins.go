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
	"sync"
	"time"
)

// Normalized Jenkins job states.
const (
	JobStateActive   = "active"
	JobStateDisabled = "disabled"
)

// Jenkins job statuses beyond the shared workflow statuses.
const (
	StatusUnstable = "unstable"
	StatusAborted  = "aborted"
	StatusNotBuilt = "not_built"
	StatusDisabled = "disabled"
)

const (
	defaultJenkinsAPIPath = "/api/json"
	colorGrey             = "grey"
	buildingColorSuffix   = "_anime"
)

// jenkinsAPIPaths are the API roots tried when discovering a Jenkins server.
var jenkinsAPIPaths = []string{
	"/api/json",
	"/releng/api/json",
	"/jenkins/api/json",
	"/ci/api/json",
	"/build/api/json",
}

var jobColorStatus = map[string]string{
	"blue":     StatusSuccess,
	"red":      StatusFailure,
	"yellow":   StatusUnstable,
	"grey":     StatusDisabled,
	"gray":     StatusDisabled,
	"aborted":  StatusAborted,
	"notbuilt": StatusNotBuilt,
	"disabled": StatusDisabled,
}

var (
	// ErrJenkinsAPI wraps failed Jenkins calls.
	ErrJenkinsAPI = errors.New("jenkins api error")
	// ErrJenkinsHost indicates a client without a server to talk to.
	ErrJenkinsHost = errors.New("jenkins host not configured")
)

// JenkinsBuild is the last build of a job.
type JenkinsBuild struct {
	Number          int        `json:"number"`
	Result          string     `json:"result,omitempty"`
	Building        bool       `json:"building"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	BuildTime       *time.Time `json:"build_time,omitempty"`
}

// JenkinsJob is one job with its normalized state and status.
type JenkinsJob struct {
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	State       string        `json:"state"`
	Color       string        `json:"color"`
	URL         string        `json:"url,omitempty"`
	APIURL      string        `json:"api_url,omitempty"`
	Buildable   bool          `json:"buildable"`
	Disabled    bool          `json:"disabled"`
	Description string        `json:"description,omitempty"`
	LastBuild   *JenkinsBuild `json:"last_build,omitempty"`
}

// JenkinsSummary lists the jobs allocated to one repository.
type JenkinsSummary struct {
	Jobs     []JenkinsJob `json:"jobs"`
	JobCount int          `json:"job_count"`
	HasJobs  bool         `json:"has_jobs"`
}

// JenkinsConfig configures Jenkins.
type JenkinsConfig struct {
	// Host is the Jenkins server name; the API is reached over https.
	Host string
	// BaseURL replaces https://<host> when set.
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Jenkins reads job state from a Jenkins server. The job listing is fetched
// once and reused.
type Jenkins struct {
	rest    *restClient
	logger  *slog.Logger
	root    string
	apiPath string

	mu     sync.Mutex
	jobs   []string
	loaded bool
}

// NewJenkins creates a client and discovers the server's API root. When no
// candidate answers, the standard /api/json is used.
func NewJenkins(ctx context.Context, cfg JenkinsConfig, stats *Stats, logger *slog.Logger) (*Jenkins, error) {
	stats, logger = withDefaults(stats, logger)

	root := strings.TrimSuffix(cfg.BaseURL, "/")
	if root == "" {
		if cfg.Host == "" {
			return nil, ErrJenkinsHost
		}

		root = "https://" + cfg.Host
	}

	j := &Jenkins{
		rest:   &restClient{http: newHTTPClient(cfg.Timeout), limiter: newLimiter(cfg.RateLimit, cfg.RateBurst), stats: stats, api: APIJenkins},
		logger: logger,
		root:   root,
	}

	j.apiPath = j.discover(ctx)

	return j, nil
}

type jobListing struct {
	Jobs []struct {
		Name string `json:"name"`
	} `json:"jobs"`
}

func (j *Jenkins) discover(ctx context.Context) string {
	for _, p := range jenkinsAPIPaths {
		status, body, err := fetch(ctx, j.rest.http, j.root+p+"?tree=jobs[name]")
		if err != nil || status != http.StatusOK {
			continue
		}

		var listing jobListing
		if json.Unmarshal(body, &listing) != nil || listing.Jobs == nil {
			continue
		}

		j.logger.Info("jenkins api", "root", j.root, "path", p, "jobs", len(listing.Jobs))

		return p
	}

	j.logger.Warn("could not discover jenkins api path, using default", "root", j.root, "path", defaultJenkinsAPIPath)

	return defaultJenkinsAPIPath
}

// APIPath returns the discovered API path, e.g. /releng/api/json.
func (j *Jenkins) APIPath() string {
	return j.apiPath
}

func (j *Jenkins) jobBase() string {
	return j.root + strings.TrimSuffix(j.apiPath, defaultJenkinsAPIPath)
}

// JobNames lists every job on the server. The first successful listing is
// cached for the lifetime of the client.
func (j *Jenkins) JobNames(ctx context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.loaded {
		return j.jobs, nil
	}

	status, body, err := j.rest.get(ctx, j.root+j.apiPath+"?tree=jobs[name,url,color,buildable,disabled]")
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", ErrJenkinsAPI, err)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: list jobs: status %d", ErrJenkinsAPI, status)
	}

	var listing jobListing

	decodeErr := json.Unmarshal(body, &listing)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode jobs: %w", ErrJenkinsAPI, decodeErr)
	}

	names := make([]string, 0, len(listing.Jobs))
	for _, job := range listing.Jobs {
		if job.Name != "" {
			names = append(names, job.Name)
		}
	}

	j.jobs, j.loaded = names, true
	j.logger.Info("fetched jenkins jobs", "count", len(names))

	return names, nil
}

type jobDocument struct {
	URL         string `json:"url"`
	Color       string `json:"color"`
	Description string `json:"description"`
	Buildable   *bool  `json:"buildable"`
	Disabled    bool   `json:"disabled"`
}

// Job fetches one job with its last build.
func (j *Jenkins) Job(ctx context.Context, name string) (JenkinsJob, error) {
	apiURL := j.jobBase() + "/job/" + url.PathEscape(name) + "/api/json"

	status, body, err := j.rest.get(ctx, apiURL)
	if err != nil {
		return JenkinsJob{}, fmt.Errorf("%w: get job %s: %w", ErrJenkinsAPI, name, err)
	}

	if status != http.StatusOK {
		return JenkinsJob{}, fmt.Errorf("%w: get job %s: status %d", ErrJenkinsAPI, name, status)
	}

	var doc jobDocument

	decodeErr := json.Unmarshal(body, &doc)
	if decodeErr != nil {
		return JenkinsJob{}, fmt.Errorf("%w: decode job %s: %w", ErrJenkinsAPI, name, decodeErr)
	}

	buildable := doc.Buildable == nil || *doc.Buildable
	state := JobState(doc.Disabled, buildable)
	jobStatus := JobStatus(doc.Color)
	color := doc.Color

	if state == JobStateDisabled {
		color = colorGrey

		if jobStatus != StatusDisabled && jobStatus != StatusNotBuilt {
			jobStatus = StatusDisabled
		}
	}

	jobURL := doc.URL
	if jobURL == "" {
		jobURL = j.jobBase() + "/job/" + url.PathEscape(name) + "/"
	}

	return JenkinsJob{
		Name:        name,
		Status:      jobStatus,
		State:       state,
		Color:       color,
		URL:         jobURL,
		APIURL:      apiURL,
		Buildable:   buildable,
		Disabled:    doc.Disabled,
		Description: doc.Description,
		LastBuild:   j.lastBuild(ctx, name),
	}, nil
}

type buildDocument struct {
	Number    int    `json:"number"`
	Result    string `json:"result"`
	Building  bool   `json:"building"`
	Duration  int64  `json:"duration"`
	Timestamp int64  `json:"timestamp"`
}

// lastBuild returns nil when the job never ran or the lookup failed.
func (j *Jenkins) lastBuild(ctx context.Context, name string) *JenkinsBuild {
	status, body, err := j.rest.get(ctx,
		j.jobBase()+"/job/"+url.PathEscape(name)+"/lastBuild/api/json?tree=result,duration,timestamp,building,number")
	if err != nil || status != http.StatusOK {
		return nil
	}

	var doc buildDocument
	if json.Unmarshal(body, &doc) != nil {
		return nil
	}

	build := &JenkinsBuild{Number: doc.Number, Result: doc.Result, Building: doc.Building}

	if doc.Duration > 0 {
		build.DurationSeconds = float64(doc.Duration) / float64(time.Second/time.Millisecond)
	}

	if doc.Timestamp > 0 {
		at := time.UnixMilli(doc.Timestamp).UTC()
		build.BuildTime = &at
	}

	return build
}

// Summarize fetches the named jobs. Jobs whose details cannot be read are
// logged and left out.
func (j *Jenkins) Summarize(ctx context.Context, names []string) JenkinsSummary {
	summary := JenkinsSummary{Jobs: []JenkinsJob{}}

	for _, name := range names {
		job, err := j.Job(ctx, name)
		if err != nil {
			j.logger.WarnContext(ctx, "jenkins job details", "job", name, "error", err)

			continue
		}

		summary.Jobs = append(summary.Jobs, job)
	}

	summary.JobCount = len(summary.Jobs)
	summary.HasJobs = summary.JobCount > 0

	return summary
}

// JobState folds Jenkins' disabled and buildable flags into one state. A job
// that is neither disabled nor buildable counts as disabled.
func JobState(disabled, buildable bool) string {
	if !disabled && buildable {
		return JobStateActive
	}

	return JobStateDisabled
}

// JobStatus maps a Jenkins ball color onto a normalized status. Animated
// colors mean a build is running.
func JobStatus(color string) string {
	if color == "" {
		return StatusUnknown
	}

	lower := strings.ToLower(color)
	if strings.HasSuffix(lower, buildingColorSuffix) {
		return StatusBuilding
	}

	if status, ok := jobColorStatus[lower]; ok {
		return status
	}

	return StatusUnknown
}
