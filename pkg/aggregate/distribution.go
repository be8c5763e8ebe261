package aggregate

import (
	"github.com/Sumatoshi-tech/repopulse/pkg/collector"
)

// DaysPerYear converts inactivity days into years for age bucketing.
const DaysPerYear = 365.25

// AgeBucket names an inactivity age class.
type AgeBucket string

// Age buckets, oldest first.
const (
	BucketVeryOld        AgeBucket = "very_old"
	BucketOld            AgeBucket = "old"
	BucketRecentInactive AgeBucket = "recent_inactive"
)

// AgeBuckets holds the year thresholds of the very_old and old buckets.
type AgeBuckets struct {
	VeryOldYears float64 `json:"very_old_years"`
	OldYears     float64 `json:"old_years"`
}

// Classify returns the bucket for a repository inactive for days. The largest
// threshold met wins; a value exactly on a threshold belongs to that older
// bucket, and equal thresholds resolve to very_old.
func (b AgeBuckets) Classify(days int) AgeBucket {
	years := float64(days) / DaysPerYear
	veryOld := years >= b.VeryOldYears
	old := years >= b.OldYears

	switch {
	case veryOld && old:
		if b.OldYears > b.VeryOldYears {
			return BucketOld
		}

		return BucketVeryOld
	case veryOld:
		return BucketVeryOld
	case old:
		return BucketOld
	default:
		return BucketRecentInactive
	}
}

// RepositoryAge is one inactive repository inside an age bucket.
type RepositoryAge struct {
	Name                string  `json:"name"`
	DaysSinceLastCommit int     `json:"days_since_last_commit"`
	YearsInactive       float64 `json:"years_inactive"`
}

// Tree exposes the entry's rankable fields.
func (r RepositoryAge) Tree() Value {
	return Map(map[string]Value{
		"name":                   String(r.Name),
		"days_since_last_commit": Int(r.DaysSinceLastCommit),
		"years_inactive":         Number(r.YearsInactive),
	})
}

// Distribution counts repositories by activity and buckets the inactive ones
// with history by age. Bucket lists are ordered oldest first.
type Distribution struct {
	Active         int             `json:"active"`
	Inactive       int             `json:"inactive"`
	NoCommit       int             `json:"no_commit"`
	VeryOld        []RepositoryAge `json:"very_old"`
	Old            []RepositoryAge `json:"old"`
	RecentInactive []RepositoryAge `json:"recent_inactive"`
}

// Bucket returns the entries of one bucket.
func (d Distribution) Bucket(b AgeBucket) []RepositoryAge {
	switch b {
	case BucketVeryOld:
		return d.VeryOld
	case BucketOld:
		return d.Old
	case BucketRecentInactive:
		return d.RecentInactive
	default:
		return nil
	}
}

// ClassifyAndDistribute places every repository in exactly one of NoCommit,
// Active or Inactive, so the three counts sum to the input length.
// Repositories without any commit are counted in NoCommit whatever their
// is_active flag says; the rest are split by is_active as collected.
// Inactive repositories are placed into exactly one age bucket; one with no
// known last commit counts as MissingDaysSortValue days old.
func ClassifyAndDistribute(repos []collector.Repository, buckets AgeBuckets) Distribution {
	dist := Distribution{
		VeryOld:        []RepositoryAge{},
		Old:            []RepositoryAge{},
		RecentInactive: []RepositoryAge{},
	}

	for _, repo := range repos {
		if !repo.HasAnyCommits {
			dist.NoCommit++

			continue
		}

		if repo.IsActive {
			dist.Active++

			continue
		}

		dist.Inactive++

		days := MissingDaysSortValue
		if repo.DaysSinceLastCommit != nil {
			days = *repo.DaysSinceLastCommit
		}

		entry := RepositoryAge{
			Name:                repo.Name,
			DaysSinceLastCommit: days,
			YearsInactive:       float64(days) / DaysPerYear,
		}

		switch buckets.Classify(days) {
		case BucketVeryOld:
			dist.VeryOld = append(dist.VeryOld, entry)
		case BucketOld:
			dist.Old = append(dist.Old, entry)
		case BucketRecentInactive:
			dist.RecentInactive = append(dist.RecentInactive, entry)
		}
	}

	dist.VeryOld = Rank(dist.VeryOld, daysSinceLastCommitPath, true)
	dist.Old = Rank(dist.Old, daysSinceLastCommitPath, true)
	dist.RecentInactive = Rank(dist.RecentInactive, daysSinceLastCommitPath, true)

	return dist
}
