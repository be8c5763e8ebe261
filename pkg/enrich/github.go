package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"
)

// Normalized workflow run statuses.
const (
	StatusSuccess         = "success"
	StatusFailure         = "failure"
	StatusBuilding        = "building"
	StatusCancelled       = "cancelled"
	StatusSkipped         = "skipped"
	StatusUnknown         = "unknown"
	StatusNoRuns          = "no_runs"
	StatusAuthError       = "auth_error"
	StatusPermissionError = "permission_error"
	StatusAPIError        = "api_error"
)

// Overall repository workflow states.
const (
	OverallNoWorkflows       = "no_workflows"
	OverallNoActiveWorkflows = "no_active_workflows"
	OverallHasFailures       = "has_failures"
	OverallHasSuccesses      = "has_successes"
	OverallUnknown           = "unknown"
	OverallError             = "error"
)

const (
	workflowsPerPage = 100
	shortSHALength   = 7
	stateActive      = "active"
)

// ErrGitHubAPI wraps failed GitHub calls.
var ErrGitHubAPI = errors.New("github api error")

// LastRun describes the newest run of a workflow.
type LastRun struct {
	ID         int64     `json:"id"`
	Number     int       `json:"number"`
	CreatedAt  time.Time `json:"created_at"`
	HTMLURL    string    `json:"html_url"`
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
}

// WorkflowStatus is one active workflow with its latest run outcome.
type WorkflowStatus struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	State      string   `json:"state"`
	Status     string   `json:"status"`
	Conclusion string   `json:"conclusion,omitempty"`
	RunStatus  string   `json:"run_status,omitempty"`
	Color      string   `json:"color"`
	HTMLURL    string   `json:"html_url,omitempty"`
	LastRun    *LastRun `json:"last_run,omitempty"`
}

// WorkflowSummary is the GitHub Actions picture of one repository.
type WorkflowSummary struct {
	Owner           string           `json:"github_owner"`
	Repo            string           `json:"github_repo"`
	HasWorkflows    bool             `json:"has_workflows"`
	TotalWorkflows  int              `json:"total_workflows"`
	ActiveWorkflows int              `json:"active_workflows"`
	Workflows       []WorkflowStatus `json:"workflows"`
	OverallStatus   string           `json:"overall_status"`
	Error           string           `json:"error,omitempty"`
}

// GitHubConfig configures GitHubWorkflows.
type GitHubConfig struct {
	Token     string
	Org       string
	BaseURL   string
	RateLimit float64
	RateBurst int
}

// GitHubWorkflows queries workflow state through the GitHub REST API.
type GitHubWorkflows struct {
	client  *github.Client
	limiter *rate.Limiter
	stats   *Stats
	logger  *slog.Logger
	org     string
}

// NewGitHubWorkflows creates a rate-limited client. BaseURL is optional and
// points the client at a GitHub Enterprise or test server.
func NewGitHubWorkflows(cfg GitHubConfig, stats *Stats, logger *slog.Logger) (*GitHubWorkflows, error) {
	client := github.NewClient(&http.Client{Timeout: time.Minute})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}

		client.BaseURL = parsed
	}

	stats, logger = withDefaults(stats, logger)

	return &GitHubWorkflows{
		client:  client,
		limiter: newLimiter(cfg.RateLimit, cfg.RateBurst),
		stats:   stats,
		logger:  logger,
		org:     cfg.Org,
	}, nil
}

// Org returns the organization mirrors are looked up in.
func (g *GitHubWorkflows) Org() string {
	return g.org
}

// RepositoryExists reports whether owner/repo is visible to the client. A
// missing repository is not an error.
func (g *GitHubWorkflows) RepositoryExists(ctx context.Context, owner, repo string) (bool, error) {
	waitErr := g.limiter.Wait(ctx)
	if waitErr != nil {
		return false, fmt.Errorf("rate limiter: %w", waitErr)
	}

	_, resp, err := g.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		g.stats.RecordError(APIGitHub, errorCode(resp, err))

		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}

		return false, fmt.Errorf("%w: get repository: %w", ErrGitHubAPI, err)
	}

	g.stats.RecordSuccess(APIGitHub)

	return true, nil
}

// RepoName maps a Gerrit-style project path to its GitHub mirror name.
func RepoName(project string) string {
	return strings.ReplaceAll(strings.Trim(project, "/"), "/", "-")
}

// Summarize fetches workflow state for the mirror of project. Failures are
// recorded in the summary rather than returned.
func (g *GitHubWorkflows) Summarize(ctx context.Context, project string) WorkflowSummary {
	owner, repo := g.org, RepoName(project)
	summary := WorkflowSummary{Owner: owner, Repo: repo, Workflows: []WorkflowStatus{}}

	workflows, err := g.listWorkflows(ctx, owner, repo)
	if err != nil {
		g.logger.Warn("list github workflows", "owner", owner, "repo", repo, "error", err)
		summary.OverallStatus = OverallError
		summary.Error = err.Error()

		return summary
	}

	if len(workflows) == 0 {
		summary.OverallStatus = OverallNoWorkflows

		return summary
	}

	summary.HasWorkflows = true
	summary.TotalWorkflows = len(workflows)

	for _, wf := range workflows {
		if wf.GetState() != stateActive {
			continue
		}

		summary.ActiveWorkflows++

		status := g.latestRun(ctx, owner, repo, wf)
		summary.Workflows = append(summary.Workflows, status)
	}

	summary.OverallStatus = overallStatus(summary.Workflows)

	return summary
}

func (g *GitHubWorkflows) listWorkflows(ctx context.Context, owner, repo string) ([]*github.Workflow, error) {
	var all []*github.Workflow

	opts := &github.ListOptions{PerPage: workflowsPerPage}

	for {
		waitErr := g.limiter.Wait(ctx)
		if waitErr != nil {
			return nil, fmt.Errorf("rate limiter: %w", waitErr)
		}

		page, resp, err := g.client.Actions.ListWorkflows(ctx, owner, repo, opts)
		if err != nil {
			g.stats.RecordError(APIGitHub, errorCode(resp, err))

			return nil, fmt.Errorf("%w: list workflows: %w", ErrGitHubAPI, err)
		}

		g.stats.RecordSuccess(APIGitHub)

		all = append(all, page.Workflows...)

		if resp.NextPage == 0 {
			return all, nil
		}

		opts.Page = resp.NextPage
	}
}

func (g *GitHubWorkflows) latestRun(ctx context.Context, owner, repo string, wf *github.Workflow) WorkflowStatus {
	status := WorkflowStatus{
		ID:      wf.GetID(),
		Name:    wf.GetName(),
		Path:    wf.GetPath(),
		State:   wf.GetState(),
		HTMLURL: wf.GetHTMLURL(),
	}

	waitErr := g.limiter.Wait(ctx)
	if waitErr != nil {
		status.Status = StatusAPIError
		status.Color = StatusColor(status.Status)

		return status
	}

	runs, resp, err := g.client.Actions.ListWorkflowRunsByID(ctx, owner, repo, wf.GetID(),
		&github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		code := errorCode(resp, err)
		g.stats.RecordError(APIGitHub, code)

		switch code {
		case strconv.Itoa(http.StatusUnauthorized):
			status.Status = StatusAuthError
		case strconv.Itoa(http.StatusForbidden):
			status.Status = StatusPermissionError
		default:
			status.Status = StatusAPIError
		}

		status.Color = StatusColor(status.Status)

		return status
	}

	g.stats.RecordSuccess(APIGitHub)

	if len(runs.WorkflowRuns) == 0 {
		status.Status = StatusNoRuns
		status.Color = StatusColor(status.Status)

		return status
	}

	run := runs.WorkflowRuns[0]
	status.Conclusion = run.GetConclusion()
	status.RunStatus = run.GetStatus()
	status.Status = RunStatus(status.Conclusion, status.RunStatus)
	status.Color = StatusColor(status.Status)

	sha := run.GetHeadSHA()
	if len(sha) > shortSHALength {
		sha = sha[:shortSHALength]
	}

	status.LastRun = &LastRun{
		ID:         run.GetID(),
		Number:     run.GetRunNumber(),
		CreatedAt:  run.GetCreatedAt().Time,
		HTMLURL:    run.GetHTMLURL(),
		HeadBranch: run.GetHeadBranch(),
		HeadSHA:    sha,
	}

	return status
}

func errorCode(resp *github.Response, err error) string {
	if resp != nil && resp.Response != nil {
		return strconv.Itoa(resp.StatusCode)
	}

	return transportErrorCode(err)
}

func transportErrorCode(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}

	return "exception"
}

// RunStatus normalizes a GitHub run's conclusion and status.
func RunStatus(conclusion, runStatus string) string {
	if conclusion == "" && runStatus == "" {
		return StatusUnknown
	}

	switch runStatus {
	case "queued", "in_progress":
		return StatusBuilding
	case "completed":
	default:
		return StatusUnknown
	}

	switch conclusion {
	case "success", "neutral":
		return StatusSuccess
	case "failure", "timed_out", "action_required":
		return StatusFailure
	case "cancelled":
		return StatusCancelled
	case "skipped":
		return StatusSkipped
	default:
		return StatusUnknown
	}
}

// StatusColor maps a normalized status onto the Jenkins-style color scheme.
func StatusColor(status string) string {
	switch status {
	case StatusSuccess:
		return "blue"
	case StatusFailure, "error", StatusAPIError, StatusAuthError, StatusPermissionError:
		return "red"
	case StatusBuilding, "in_progress":
		return "blue_anime"
	default:
		return "grey"
	}
}

func overallStatus(workflows []WorkflowStatus) string {
	if len(workflows) == 0 {
		return OverallNoActiveWorkflows
	}

	hasSuccess := false

	for _, wf := range workflows {
		if wf.Status == StatusFailure {
			return OverallHasFailures
		}

		if wf.Status == StatusSuccess {
			hasSuccess = true
		}
	}

	if hasSuccess {
		return OverallHasSuccesses
	}

	return OverallUnknown
}
