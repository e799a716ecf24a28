package domain

// SubjectType differentiates the callers that hold service tokens.
type SubjectType string

const (
	// SubjectTypeDashboard is a read-mostly dashboard agent.
	SubjectTypeDashboard SubjectType = "DASHBOARD"
	// SubjectTypeAgent is a support agent or integration that mutates tickets.
	SubjectTypeAgent SubjectType = "AGENT"
)

// Valid reports whether s is a known subject type.
func (s SubjectType) Valid() bool {
	return s == SubjectTypeDashboard || s == SubjectTypeAgent
}
