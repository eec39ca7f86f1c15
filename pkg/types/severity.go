package types

type Severity string

const (
	SeverityDown      Severity = "Down"
	SeverityDegraded  Severity = "Degraded"
	SeveritySuspected Severity = "Suspected"
)

// GetSeverityLevel returns a numeric level for comparing severities; higher is more critical.
// Unrecognized severities are level 0.
func GetSeverityLevel(severity Severity) int {
	switch severity {
	case SeverityDown:
		return 3
	case SeverityDegraded:
		return 2
	case SeveritySuspected:
		return 1
	default:
		return 0
	}
}

// IsValidSeverity reports whether severity is one of Down, Degraded or Suspected.
func IsValidSeverity(severity string) bool {
	return GetSeverityLevel(Severity(severity)) > 0
}

// ToStatus converts a Severity into the status a sub-component carries while an outage of that severity is active.
func (s Severity) ToStatus() Status {
	switch s {
	case SeverityDown:
		return StatusDown
	case SeverityDegraded:
		return StatusDegraded
	case SeveritySuspected:
		return StatusSuspected
	default:
		return StatusHealthy
	}
}
