package enrich

import (
	"math"
	"slices"
	"strings"
)

// Job match scores. A job belongs to a project when its name equals the
// project's dashed name or starts with it followed by a dash.
const (
	scoreExact       = 1000
	scorePrefix      = 500
	scorePerLevel    = 50
	scorePerSegment  = 25
	percentPrecision = 100
)

// infrastructurePrefixes mark shared jobs that belong to no project.
var infrastructurePrefixes = []string{
	"lab-",
	"lf-",
	"openci-",
	"rtdv3-",
	"global-jjb-",
	"ci-management-",
	"releng-",
	"autorelease-",
	"docs-",
	"infra-",
}

// JobName maps a Gerrit project path onto the dashed form used in job names.
func JobName(project string) string {
	return strings.ReplaceAll(project, "/", "-")
}

// MatchScore rates how well job belongs to project; zero means no match.
// Deeper projects and longer leading segment runs score higher, so a child
// project outranks its parent for the same job.
func MatchScore(job, project string) int {
	jobLower := strings.ToLower(job)
	projectLower := strings.ToLower(project)
	dashed := JobName(projectLower)

	if jobLower == dashed {
		return scoreExact
	}

	if !strings.HasPrefix(jobLower, dashed+"-") {
		return 0
	}

	score := scorePrefix + (strings.Count(project, "/")+1)*scorePerLevel

	jobParts := strings.Split(jobLower, "-")
	for i, part := range strings.Split(dashed, "-") {
		if i >= len(jobParts) || jobParts[i] != part {
			break
		}

		score += scorePerSegment
	}

	return score
}

// OrphanedJob is a job matched to an archived Gerrit project.
type OrphanedJob struct {
	Project string `json:"project_name"`
	State   string `json:"state"`
	Score   int    `json:"score"`
}

// Allocation assigns every Jenkins job to at most one project.
type Allocation struct {
	// ByProject lists each project's jobs, best match first.
	ByProject map[string][]string `json:"-"`

	TotalJobs      int      `json:"total_jenkins_jobs"`
	AllocatedJobs  int      `json:"allocated_jobs"`
	Unallocated    int      `json:"unallocated_jobs"`
	Percentage     float64  `json:"allocation_percentage"`
	AllocatedNames []string `json:"allocated_job_names"`

	Orphaned       map[string]OrphanedJob `json:"orphaned_jobs"`
	Infrastructure []string               `json:"infrastructure_jobs"`
	// UnallocatedProjectJobs look like project jobs but matched nothing.
	UnallocatedProjectJobs []string `json:"unallocated_project_jobs"`
}

type scoredJob struct {
	name  string
	score int
}

// Allocate gives each job to the highest-scoring project, ties going to the
// lexically smaller project name, so the outcome does not depend on the
// order repositories are collected in. Jobs left over are matched against
// archived projects (project name to Gerrit state), then classified as
// infrastructure or unallocated project jobs.
func Allocate(jobs, projects []string, archived map[string]string) Allocation {
	alloc := Allocation{
		ByProject:              map[string][]string{},
		TotalJobs:              len(jobs),
		AllocatedNames:         []string{},
		Orphaned:               map[string]OrphanedJob{},
		Infrastructure:         []string{},
		UnallocatedProjectJobs: []string{},
	}

	sortedProjects := slices.Clone(projects)
	slices.Sort(sortedProjects)

	scored := map[string][]scoredJob{}

	var leftover []string

	for _, job := range jobs {
		project, score := bestMatch(job, sortedProjects)
		if score == 0 {
			leftover = append(leftover, job)

			continue
		}

		scored[project] = append(scored[project], scoredJob{name: job, score: score})
		alloc.AllocatedNames = append(alloc.AllocatedNames, job)
	}

	for project, list := range scored {
		slices.SortFunc(list, func(a, b scoredJob) int {
			if a.score != b.score {
				return b.score - a.score
			}

			return strings.Compare(a.name, b.name)
		})

		names := make([]string, len(list))
		for i, sj := range list {
			names[i] = sj.name
		}

		alloc.ByProject[project] = names
	}

	slices.Sort(alloc.AllocatedNames)
	alloc.AllocatedJobs = len(alloc.AllocatedNames)
	alloc.Unallocated = alloc.TotalJobs - alloc.AllocatedJobs

	if alloc.TotalJobs > 0 {
		pct := float64(alloc.AllocatedJobs) / float64(alloc.TotalJobs) * percentPrecision
		alloc.Percentage = math.Round(pct*percentPrecision) / percentPrecision
	}

	alloc.classifyLeftover(leftover, archived)

	return alloc
}

func bestMatch(job string, projects []string) (string, int) {
	best, bestScore := "", 0

	for _, project := range projects {
		if score := MatchScore(job, project); score > bestScore {
			best, bestScore = project, score
		}
	}

	return best, bestScore
}

func (a *Allocation) classifyLeftover(leftover []string, archived map[string]string) {
	archivedNames := make([]string, 0, len(archived))
	for name := range archived {
		archivedNames = append(archivedNames, name)
	}

	slices.Sort(archivedNames)

	for _, job := range leftover {
		if project, score := bestMatch(job, archivedNames); score > 0 {
			a.Orphaned[job] = OrphanedJob{Project: project, State: archived[project], Score: score}

			continue
		}

		if isInfrastructureJob(job) {
			a.Infrastructure = append(a.Infrastructure, job)
		} else {
			a.UnallocatedProjectJobs = append(a.UnallocatedProjectJobs, job)
		}
	}

	slices.Sort(a.Infrastructure)
	slices.Sort(a.UnallocatedProjectJobs)
}

func isInfrastructureJob(job string) bool {
	lower := strings.ToLower(job)

	for _, prefix := range infrastructurePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}

// OrphanedByState counts orphaned jobs per Gerrit project state.
func (a Allocation) OrphanedByState() map[string]int {
	out := map[string]int{}
	for _, o := range a.Orphaned {
		out[o.State]++
	}

	return out
}
