package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/github-star-monitor/internal/diff"
	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func renderSnapshot(w io.Writer, snap *domain.Snapshot) {
	fmt.Fprintf(w, "\nStargazers: %s\n", snap.Repo)
	fmt.Fprintf(w, "Total Stars: %d  Last Check: %s  Saved: %s\n\n",
		snap.TotalCount, formatTime(snap.LastCheckTime), formatTime(snap.SaveTime))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Login", "Profile", "Last Seen"})
	for _, login := range snap.Members.Sorted() {
		info := diff.Describe(snap.MemberInfo, login)
		table.Append([]string{login, info.HTMLURL, formatTime(info.LastSeen)})
	}
	table.SetFooter([]string{"", "Members", fmt.Sprintf("%d", snap.Members.Len())})
	table.Render()
}

func renderTrend(w io.Writer, trend *domain.Trend, total domain.Counts) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Period", "Gained", "Lost", "Net"})
	for i, label := range trend.Labels {
		c := domain.Counts{Gained: trend.Gained[i], Lost: trend.Lost[i]}
		table.Append([]string{label, fmt.Sprintf("%d", c.Gained), fmt.Sprintf("%d", c.Lost), fmt.Sprintf("%+d", c.Net())})
	}
	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total.Gained), fmt.Sprintf("%d", total.Lost), fmt.Sprintf("%+d", total.Net())})
	table.Render()
}

func renderActivity(w io.Writer, events []*domain.ActivityEvent) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Event", "Login", "Profile"})
	for _, e := range events {
		profile := diff.ProfileURL(e.Login)
		if e.Member != nil && e.Member.HTMLURL != "" {
			profile = e.Member.HTMLURL
		}
		table.Append([]string{formatTime(e.Timestamp), string(e.Type), e.Login, profile})
	}
	table.Render()
}

func renderStatus(w io.Writer, status *domain.RepoStatus) {
	fmt.Fprintf(w, "\nMonitor Status: %s\n\n", status.Repo)

	lastCheck := "-"
	if status.LastCheckTime != nil {
		lastCheck = formatTime(*status.LastCheckTime)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Phase", status.Phase})
	table.Append([]string{"Total Stars", fmt.Sprintf("%d", status.TotalCount)})
	table.Append([]string{"Tracked Stargazers", fmt.Sprintf("%d", status.MemberCount)})
	table.Append([]string{"Last Check", lastCheck})
	table.Append([]string{"Gained Today", fmt.Sprintf("%d", status.Today.Gained)})
	table.Append([]string{"Lost Today", fmt.Sprintf("%d", status.Today.Lost)})
	if rl := status.RateLimit; rl != nil {
		table.Append([]string{"Rate Limit Remaining", fmt.Sprintf("%d/%d", rl.Remaining, rl.Limit)})
		table.Append([]string{"Rate Limit Reset", formatTime(rl.Reset)})
	}
	table.Render()
}
