package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
	"github.com/Sumatoshi-tech/repopulse/pkg/enrich"
	"github.com/Sumatoshi-tech/repopulse/pkg/persist"
	"github.com/Sumatoshi-tech/repopulse/pkg/timewindow"
)

// SchemaVersion is the version of the report_raw.json layout.
const SchemaVersion = "1.0.0"

// RawBasename is the snapshot file name without extension.
const RawBasename = "report_raw"

// Snapshot is the canonical JSON document of one run. Every other artifact
// is derived from it.
type Snapshot struct {
	SchemaVersion     string                       `json:"schema_version"`
	GeneratedAt       time.Time                    `json:"generated_at"`
	RunID             string                       `json:"run_id"`
	Project           string                       `json:"project"`
	ConfigDigest      string                       `json:"config_digest"`
	TimeWindows       map[string]timewindow.Window `json:"time_windows"`
	Repositories      []collector.Repository       `json:"repositories"`
	Authors           []aggregate.AuthorRollup     `json:"authors"`
	Organizations     []aggregate.OrgRollup        `json:"organizations"`
	Summaries         aggregate.Summaries          `json:"summaries"`
	Errors            []aggregate.RunError         `json:"errors"`
	APIStatistics     []enrich.APISummary          `json:"api_statistics,omitempty"`
	JenkinsAllocation *enrich.Allocation           `json:"jenkins_allocation,omitempty"`
}

// SnapshotInput gathers what NewSnapshot needs.
type SnapshotInput struct {
	Project           string
	ConfigDigest      string
	Windows           timewindow.Set
	Repositories      []collector.Repository
	Report            aggregate.Report
	APIStatistics     []enrich.APISummary
	JenkinsAllocation *enrich.Allocation
	GeneratedAt       time.Time
}

// NewSnapshot assembles a snapshot with a fresh run id.
func NewSnapshot(in SnapshotInput) Snapshot {
	repos := in.Repositories
	if repos == nil {
		repos = []collector.Repository{}
	}

	rep := in.Report
	if rep.Authors == nil {
		rep.Authors = []aggregate.AuthorRollup{}
	}

	if rep.Organizations == nil {
		rep.Organizations = []aggregate.OrgRollup{}
	}

	if rep.Errors == nil {
		rep.Errors = []aggregate.RunError{}
	}

	return Snapshot{
		SchemaVersion:     SchemaVersion,
		GeneratedAt:       in.GeneratedAt.UTC(),
		RunID:             uuid.NewString(),
		Project:           in.Project,
		ConfigDigest:      in.ConfigDigest,
		TimeWindows:       in.Windows.ByName(),
		Repositories:      repos,
		Authors:           rep.Authors,
		Organizations:     rep.Organizations,
		Summaries:         rep.Summaries,
		Errors:            rep.Errors,
		APIStatistics:     in.APIStatistics,
		JenkinsAllocation: in.JenkinsAllocation,
	}
}

// WindowNames returns the snapshot's windows, shortest first.
func (s *Snapshot) WindowNames() []string {
	return timewindow.FromWindows(s.TimeWindows).Names()
}

func snapshotPersister() *persist.Persister[Snapshot] {
	return persist.NewPersister[Snapshot](RawBasename, persist.NewJSONCodec())
}

// SaveSnapshot writes report_raw.json into dir.
func SaveSnapshot(dir string, snap *Snapshot) (string, error) {
	return snapshotPersister().Save(dir, snap)
}

// LoadSnapshot reads report_raw.json from dir.
func LoadSnapshot(dir string) (*Snapshot, error) {
	return snapshotPersister().Load(dir)
}
