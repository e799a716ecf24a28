package tui

import (
	"time"

	"github.com/developer-yasir/support-panel/internal/api/dto"
	"github.com/developer-yasir/support-panel/internal/realtime"
	"github.com/developer-yasir/support-panel/internal/stats"
)

// SnapshotMsg delivers changed aggregates from the coordinator.
type SnapshotMsg struct{ Snapshot stats.Snapshot }

// NewTicketsMsg carries the transient new-ticket delta; 0 clears the badge.
type NewTicketsMsg struct{ Count int }

// FetchErrorMsg signals a failed stats refresh.
type FetchErrorMsg struct{ Err error }

// ConnStateMsg reports a push channel transition.
type ConnStateMsg struct {
	State realtime.State
	Err   error
}

// SLAMsg delivers an SLA overview.
type SLAMsg struct{ Summary dto.SLASummaryResponse }

// SLAErrorMsg signals a failed SLA overview fetch.
type SLAErrorMsg struct{ Err error }

// SLATickMsg triggers the next SLA overview fetch.
type SLATickMsg time.Time
