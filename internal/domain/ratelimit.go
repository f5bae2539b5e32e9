package domain

import "time"

// RateLimitState captures the latest rate limit information seen from the API
type RateLimitState struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Reset     time.Time     `json:"reset"`
	LastWait  time.Duration `json:"last_wait"`
}
