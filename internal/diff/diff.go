// Package diff compares stargazer sets and merges member metadata.
// All functions are pure: inputs are never modified.
package diff

import (
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

const profileBaseURL = "https://github.com/"

// Result holds the membership changes between two observations
type Result struct {
	Added   domain.Set
	Removed domain.Set
}

// Empty reports whether nothing changed
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Compute returns added = current - previous and removed = previous - current
func Compute(previous, current domain.Set) Result {
	res := Result{Added: make(domain.Set), Removed: make(domain.Set)}
	for login := range current {
		if !previous.Has(login) {
			res.Added.Add(login)
		}
	}
	for login := range previous {
		if !current.Has(login) {
			res.Removed.Add(login)
		}
	}
	return res
}

// Members returns the set of logins in items
func Members(items []domain.Stargazer) domain.Set {
	s := make(domain.Set, len(items))
	for _, it := range items {
		s.Add(it.Login)
	}
	return s
}

// Apply returns the snapshot that follows prev after observing items.
// Added members get fresh metadata, present members without metadata are
// filled in and every present member's LastSeen moves to now. Metadata of
// absent members is kept unless maxAge > 0 and it was last seen longer ago.
func Apply(prev *domain.Snapshot, items []domain.Stargazer, total int, now time.Time, maxAge time.Duration) (*domain.Snapshot, Result) {
	next := prev.Clone()
	current := Members(items)
	res := Compute(prev.Members, current)

	for _, it := range items {
		info, ok := next.MemberInfo[it.Login]
		if res.Added.Has(it.Login) || !ok {
			next.MemberInfo[it.Login] = it.Info(now)
			continue
		}
		info.LastSeen = now
		next.MemberInfo[it.Login] = info
	}

	if maxAge > 0 {
		evict(next.MemberInfo, current, now, maxAge)
	}

	next.Members = current
	next.TotalCount = total
	next.LastCheckTime = now
	return next, res
}

// Rebuild creates a snapshot from scratch, discarding prior history
func Rebuild(repo string, items []domain.Stargazer, total int, now time.Time) *domain.Snapshot {
	snap := domain.NewSnapshot(repo)
	for _, it := range items {
		snap.Members.Add(it.Login)
		snap.MemberInfo[it.Login] = it.Info(now)
	}
	snap.TotalCount = total
	snap.LastCheckTime = now
	return snap
}

// Describe returns the retained metadata for login, or a fallback carrying
// the canonical profile URL
func Describe(info map[string]domain.MemberInfo, login string) domain.MemberInfo {
	if mi, ok := info[login]; ok {
		if mi.HTMLURL == "" {
			mi.HTMLURL = ProfileURL(login)
		}
		return mi
	}
	return domain.MemberInfo{HTMLURL: ProfileURL(login)}
}

// ProfileURL returns the GitHub profile URL of login
func ProfileURL(login string) string {
	return profileBaseURL + login
}

func evict(info map[string]domain.MemberInfo, present domain.Set, now time.Time, maxAge time.Duration) {
	for login, mi := range info {
		if present.Has(login) || mi.LastSeen.IsZero() {
			continue
		}
		if now.Sub(mi.LastSeen) > maxAge {
			delete(info, login)
		}
	}
}
