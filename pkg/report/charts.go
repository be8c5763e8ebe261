package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/repopulse/pkg/aggregate"
)

const (
	chartWidth    = "1100px"
	chartHeight   = "480px"
	labelRotation = 35
	pieRadius     = "60%"
)

// Chart colors.
const (
	colorActive   = "#2ecc71"
	colorRecent   = "#f1c40f"
	colorOld      = "#e67e22"
	colorVeryOld  = "#e74c3c"
	colorNoCommit = "#95a5a6"
	colorCommits  = "#3498db"
	colorOrgs     = "#9b59b6"
)

type chartStyle struct{}

func (chartStyle) init() opts.Initialization {
	return opts.Initialization{Width: chartWidth, Height: chartHeight}
}

func (chartStyle) title(title, subtitle string) opts.Title {
	return opts.Title{Title: title, Subtitle: subtitle, Left: "center"}
}

func (chartStyle) xAxis() opts.XAxis {
	return opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: labelRotation, Interval: "0"}}
}

func (chartStyle) tooltip(trigger string) opts.Tooltip {
	return opts.Tooltip{Show: opts.Bool(true), Trigger: trigger}
}

func (chartStyle) grid() opts.Grid {
	return opts.Grid{Top: "15%", Bottom: "20%", Left: "5%", Right: "5%", ContainLabel: opts.Bool(true)}
}

// RenderCharts writes report_charts.html: leaderboards and the activity
// distribution as interactive charts.
func RenderCharts(w io.Writer, snap *Snapshot) error {
	primary := snap.Summaries.PrimaryWindow
	if primary == "" {
		primary = aggregate.DefaultPrimaryWindow
	}

	page := components.NewPage()
	page.SetPageTitle(snap.Project + " repository activity")

	page.AddCharts(
		activityPie(snap.Summaries.ActivityDistribution),
		repositoriesBar(snap, primary),
		contributorsBar(snap, primary),
		organizationsBar(snap, primary),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("%w: charts: %w", ErrRender, err)
	}

	return nil
}

func activityPie(d aggregate.Distribution) *charts.Pie {
	style := chartStyle{}
	pie := charts.NewPie()

	pie.SetGlobalOptions(
		charts.WithInitializationOpts(style.init()),
		charts.WithTitleOpts(style.title("Repository activity", "active, inactive by age, and without commits")),
		charts.WithTooltipOpts(style.tooltip("item")),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	data := []opts.PieData{
		{Name: "Active", Value: d.Active, ItemStyle: &opts.ItemStyle{Color: colorActive}},
		{Name: "Recently inactive", Value: len(d.Bucket(aggregate.BucketRecentInactive)), ItemStyle: &opts.ItemStyle{Color: colorRecent}},
		{Name: "Old", Value: len(d.Bucket(aggregate.BucketOld)), ItemStyle: &opts.ItemStyle{Color: colorOld}},
		{Name: "Very old", Value: len(d.Bucket(aggregate.BucketVeryOld)), ItemStyle: &opts.ItemStyle{Color: colorVeryOld}},
		{Name: "No commits", Value: d.NoCommit, ItemStyle: &opts.ItemStyle{Color: colorNoCommit}},
	}

	pie.AddSeries("Repositories", data).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c} ({d}%)"}),
		charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}),
	)

	return pie
}

func barChart(title, subtitle, series, color string, labels []string, values []int) *charts.Bar {
	style := chartStyle{}
	bar := charts.NewBar()

	bar.SetGlobalOptions(
		charts.WithInitializationOpts(style.init()),
		charts.WithTitleOpts(style.title(title, subtitle)),
		charts.WithTooltipOpts(style.tooltip("axis")),
		charts.WithXAxisOpts(style.xAxis()),
		charts.WithGridOpts(style.grid()),
	)

	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}

	bar.SetXAxis(labels).AddSeries(series, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))

	return bar
}

func repositoriesBar(snap *Snapshot, primary string) *charts.Bar {
	repos := snap.Summaries.TopActiveRepositories
	labels := make([]string, len(repos))
	values := make([]int, len(repos))

	for i, r := range repos {
		labels[i] = r.Name
		values[i] = r.CommitCounts[primary]
	}

	return barChart("Most active repositories", "commits, "+primary, "Commits", colorCommits, labels, values)
}

func contributorsBar(snap *Snapshot, primary string) *charts.Bar {
	authors := snap.Summaries.TopContributorsCommits
	labels := make([]string, len(authors))
	values := make([]int, len(authors))

	for i, a := range authors {
		labels[i] = a.Name
		values[i] = a.Commits[primary]
	}

	return barChart("Top contributors", "commits, "+primary, "Commits", colorCommits, labels, values)
}

func organizationsBar(snap *Snapshot, primary string) *charts.Bar {
	orgs := snap.Summaries.TopOrganizations
	labels := make([]string, len(orgs))
	values := make([]int, len(orgs))

	for i, o := range orgs {
		labels[i] = o.Domain
		values[i] = o.Commits[primary]
	}

	return barChart("Top organizations", "commits, "+primary, "Commits", colorOrgs, labels, values)
}
