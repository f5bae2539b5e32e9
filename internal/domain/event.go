package domain

import (
	"fmt"
	"time"
)

// EventType represents the kind of membership change
type EventType string

const (
	EventTypeStarAdded   EventType = "star_added"
	EventTypeStarRemoved EventType = "star_removed"
)

// ActivityEvent is a single membership change observed by the monitor
type ActivityEvent struct {
	ID        string      `json:"id"`
	Repo      string      `json:"repo"`
	Type      EventType   `json:"type"`
	Login     string      `json:"login"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Member    *MemberInfo `json:"member,omitempty"`
}

// NewActivityEvent builds an event with a human readable message
func NewActivityEvent(id, repo string, typ EventType, login string, info *MemberInfo, at time.Time) *ActivityEvent {
	var msg string
	switch typ {
	case EventTypeStarAdded:
		msg = fmt.Sprintf("%s starred %s", login, repo)
	case EventTypeStarRemoved:
		msg = fmt.Sprintf("%s unstarred %s", login, repo)
	default:
		msg = fmt.Sprintf("%s: %s", typ, login)
	}
	return &ActivityEvent{
		ID:        id,
		Repo:      repo,
		Type:      typ,
		Login:     login,
		Message:   msg,
		Timestamp: at,
		Member:    info,
	}
}
