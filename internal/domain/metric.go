package domain

import "time"

// Counts holds gained and lost stars for one period
type Counts struct {
	Gained int `json:"gained"`
	Lost   int `json:"lost"`
}

// Net returns gained minus lost
func (c Counts) Net() int {
	return c.Gained - c.Lost
}

// Trend is a zero-filled series over a trailing window, oldest period first
type Trend struct {
	Granularity string   `json:"granularity"` // "day" or "hour"
	Labels      []string `json:"labels"`
	Gained      []int    `json:"gained"`
	Lost        []int    `json:"lost"`
}

// StatsExport is the raw counter state keyed by period label
type StatsExport struct {
	Daily  map[string]Counts `json:"daily"`
	Hourly map[string]Counts `json:"hourly"`
}

// SnapshotSummary is the exported portion of a snapshot
type SnapshotSummary struct {
	Repo          string                `json:"repo"`
	TotalCount    int                   `json:"total_count"`
	Members       []string              `json:"members"`
	MemberInfo    map[string]MemberInfo `json:"member_info"`
	LastCheckTime *time.Time            `json:"last_check_time,omitempty"`
}

// Export combines snapshot, stats and activity history for archival
type Export struct {
	Snapshot   SnapshotSummary  `json:"snapshot"`
	Stats      StatsExport      `json:"stats"`
	Activity   []*ActivityEvent `json:"activity"`
	ExportedAt time.Time        `json:"exported_at"`
}

// Summarize converts a snapshot into its exported form
func Summarize(s *Snapshot) SnapshotSummary {
	if s == nil {
		return SnapshotSummary{Members: []string{}, MemberInfo: map[string]MemberInfo{}}
	}
	sum := SnapshotSummary{
		Repo:       s.Repo,
		TotalCount: s.TotalCount,
		Members:    s.Members.Sorted(),
		MemberInfo: make(map[string]MemberInfo, len(s.MemberInfo)),
	}
	for k, v := range s.MemberInfo {
		sum.MemberInfo[k] = v
	}
	if !s.LastCheckTime.IsZero() {
		t := s.LastCheckTime
		sum.LastCheckTime = &t
	}
	return sum
}
