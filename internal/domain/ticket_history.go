package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated  TicketChangeType = "CREATED"
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypePriority TicketChangeType = "PRIORITY_CHANGE"
)

// TicketHistory is an immutable audit trail entry. OldValue is empty for
// ChangeTypeCreated.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType SubjectType
	ChangedByID   string
	ChangeType    TicketChangeType
	OldValue      string
	NewValue      string
	CreatedAt     time.Time
}
