package health

// Priority classifies how severely a failing check should affect the
// aggregate rollup status (§OverallStatus). Lower numeric value is
// more severe.
type Priority int

const (
	// PriorityCritical checks gate the aggregate status directly: any
	// failing critical check makes the whole aggregate Unhealthy.
	PriorityCritical Priority = iota

	// PriorityImportant checks escalate the aggregate to Degraded when
	// failing, unless a critical check is also failing.
	PriorityImportant

	// PriorityInformational checks are reported in the per-check map
	// but never change the aggregate rollup status on their own.
	PriorityInformational
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityImportant:
		return "important"
	case PriorityInformational:
		return "informational"
	default:
		return "unknown"
	}
}
