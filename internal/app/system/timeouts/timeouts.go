// internal/app/system/timeouts/timeouts.go

// Package timeouts provides centralized timeout values for handler and
// worker operations. Handlers wrap their request context with one of these
// instead of inventing ad-hoc durations.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads or lookups
//   - Medium: list queries, moderate writes, multi-step reads
//   - Long: transactional writes, operations touching multiple collections
//   - Batch: bulk operations like the daily status reset
package timeouts

import (
	"context"
	"time"
)

const (
	Ping   = 2 * time.Second
	Short  = 5 * time.Second
	Medium = 10 * time.Second
	Long   = 30 * time.Second
	Batch  = 60 * time.Second
)

// Within derives a context bounded by d from parent.
func Within(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
