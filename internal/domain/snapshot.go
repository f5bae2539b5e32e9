package domain

import (
	"sort"
	"time"
)

// Set is an unordered collection of unique logins
type Set map[string]struct{}

// NewSet builds a Set from the given logins
func NewSet(logins ...string) Set {
	s := make(Set, len(logins))
	for _, l := range logins {
		s[l] = struct{}{}
	}
	return s
}

// Add inserts a login
func (s Set) Add(login string) {
	s[login] = struct{}{}
}

// Has reports whether login is in the set
func (s Set) Has(login string) bool {
	_, ok := s[login]
	return ok
}

// Len returns the number of logins
func (s Set) Len() int {
	return len(s)
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the logins in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stargazer is one entry of the stargazers listing
type Stargazer struct {
	Login     string
	ID        int64
	HTMLURL   string
	AvatarURL string
	StarredAt *time.Time
}

// Info converts the listing entry into retained member metadata
func (s Stargazer) Info(seen time.Time) MemberInfo {
	return MemberInfo{
		ID:        s.ID,
		HTMLURL:   s.HTMLURL,
		AvatarURL: s.AvatarURL,
		LastSeen:  seen,
	}
}

// MemberInfo is the metadata retained for every login ever seen
type MemberInfo struct {
	ID        int64     `json:"id"`
	HTMLURL   string    `json:"html_url"`
	AvatarURL string    `json:"avatar_url"`
	LastSeen  time.Time `json:"last_seen,omitzero"`
}

// Snapshot is the persisted record of the last reconciled stargazer set
type Snapshot struct {
	Repo          string
	Members       Set
	MemberInfo    map[string]MemberInfo
	TotalCount    int
	LastCheckTime time.Time
	SaveTime      time.Time
}

// NewSnapshot creates an empty snapshot for repo
func NewSnapshot(repo string) *Snapshot {
	return &Snapshot{
		Repo:       repo,
		Members:    make(Set),
		MemberInfo: make(map[string]MemberInfo),
	}
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Members = s.Members.Clone()
	out.MemberInfo = make(map[string]MemberInfo, len(s.MemberInfo))
	for k, v := range s.MemberInfo {
		out.MemberInfo[k] = v
	}
	return &out
}

// RepoStatus is the queryable view of the monitor state
type RepoStatus struct {
	Repo          string          `json:"repo"`
	Phase         string          `json:"phase"`
	TotalCount    int             `json:"total_count"`
	MemberCount   int             `json:"member_count"`
	LastCheckTime *time.Time      `json:"last_check_time,omitempty"`
	RateLimit     *RateLimitState `json:"rate_limit,omitempty"`
	Today         Counts          `json:"today"`
}
