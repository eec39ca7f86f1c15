package types

type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusDegraded  Status = "Degraded"
	StatusDown      Status = "Down"
	StatusSuspected Status = "Suspected"
	StatusPartial   Status = "Partial" // Indicates that some sub-components are healthy, and some are degraded or down
	// StatusUnknown is only ever substituted when no signal could be obtained for an entity.
	StatusUnknown Status = "Unknown"
)

// IsValid reports whether s is one of the known status values, including Unknown.
func (s Status) IsValid() bool {
	switch s {
	case StatusHealthy, StatusDegraded, StatusDown, StatusSuspected, StatusPartial, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus converts a string into a Status, returning false when it is not a known value.
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	return status, status.IsValid()
}

// ToSeverity converts a Status to a Severity. Returns an empty string if the status cannot be converted to a severity.
func (s Status) ToSeverity() Severity {
	switch s {
	case StatusDown:
		return SeverityDown
	case StatusDegraded:
		return SeverityDegraded
	case StatusSuspected:
		return SeveritySuspected
	default:
		return ""
	}
}

// ComponentStatus is the payload a status source reports for a single component or sub-component.
type ComponentStatus struct {
	ComponentName string   `json:"component_name"`
	Status        Status   `json:"status"`
	ActiveOutages []Outage `json:"active_outages"`
}

// DetermineStatusFromSeverity derives a sub-component status from its active outages: the most
// severe outage wins, and no outages means healthy.
func DetermineStatusFromSeverity(outages []Outage) Status {
	if len(outages) == 0 {
		return StatusHealthy
	}

	mostCriticalSeverity := outages[0].Severity
	highestLevel := GetSeverityLevel(mostCriticalSeverity)
	for _, outage := range outages[1:] {
		level := GetSeverityLevel(outage.Severity)
		if level > highestLevel {
			highestLevel = level
			mostCriticalSeverity = outage.Severity
		}
	}
	return mostCriticalSeverity.ToStatus()
}

// RollupSubComponentStatuses derives a component status from the statuses of its sub-components.
// When none are affected the component is healthy, when all are affected it takes the most severe
// status, and anything in between is Partial.
func RollupSubComponentStatuses(statuses []Status) Status {
	var affected int
	worst := StatusHealthy
	worstLevel := 0
	for _, status := range statuses {
		if status == StatusHealthy {
			continue
		}
		affected++
		if level := GetSeverityLevel(status.ToSeverity()); level > worstLevel {
			worstLevel = level
			worst = status
		}
	}

	switch {
	case affected == 0:
		return StatusHealthy
	case affected < len(statuses):
		return StatusPartial
	case worstLevel == 0:
		// every sub-component is affected but none maps onto a severity, e.g. all Unknown
		return statuses[0]
	default:
		return worst
	}
}
