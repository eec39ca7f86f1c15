package types

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetermineStatusFromSeverity(t *testing.T) {
	tests := []struct {
		name     string
		outages  []Outage
		expected Status
	}{
		{
			name:     "single outage - down severity",
			outages:  []Outage{{Severity: SeverityDown}},
			expected: StatusDown,
		},
		{
			name: "multiple outages - highest severity wins",
			outages: []Outage{
				{Severity: SeveritySuspected},
				{Severity: SeverityDown},
				{Severity: SeverityDegraded},
			},
			expected: StatusDown,
		},
		{
			name: "multiple outages - degraded highest",
			outages: []Outage{
				{Severity: SeveritySuspected},
				{Severity: SeverityDegraded},
				{Severity: SeveritySuspected},
			},
			expected: StatusDegraded,
		},
		{
			name: "all same severity",
			outages: []Outage{
				{Severity: SeveritySuspected},
				{Severity: SeveritySuspected},
			},
			expected: StatusSuspected,
		},
		{
			name:     "empty outages slice",
			outages:  []Outage{},
			expected: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineStatusFromSeverity(tt.outages))
		})
	}
}

func TestRollupSubComponentStatuses(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{name: "no sub-components", statuses: nil, expected: StatusHealthy},
		{name: "all healthy", statuses: []Status{StatusHealthy, StatusHealthy}, expected: StatusHealthy},
		{name: "some affected", statuses: []Status{StatusHealthy, StatusDown}, expected: StatusPartial},
		{name: "all affected - worst wins", statuses: []Status{StatusSuspected, StatusDown, StatusDegraded}, expected: StatusDown},
		{name: "all unknown", statuses: []Status{StatusUnknown, StatusUnknown}, expected: StatusUnknown},
		{name: "unknown alongside down", statuses: []Status{StatusUnknown, StatusDown}, expected: StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RollupSubComponentStatuses(tt.statuses))
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	for _, status := range []Status{StatusHealthy, StatusDegraded, StatusDown, StatusSuspected, StatusPartial, StatusUnknown} {
		assert.True(t, status.IsValid(), string(status))
	}
	assert.False(t, Status("healthy").IsValid())
	assert.False(t, Status("").IsValid())

	status, ok := ParseStatus("Partial")
	assert.True(t, ok)
	assert.Equal(t, StatusPartial, status)
}

func TestSeverity(t *testing.T) {
	assert.True(t, IsValidSeverity("Down"))
	assert.True(t, IsValidSeverity("Suspected"))
	assert.False(t, IsValidSeverity("Partial"))
	assert.Equal(t, StatusDegraded, SeverityDegraded.ToStatus())
	assert.Equal(t, SeverityDown, StatusDown.ToSeverity())
	assert.Equal(t, Severity(""), StatusHealthy.ToSeverity())
}

func TestOutage_IsActive(t *testing.T) {
	now := time.Now()

	open := Outage{}
	assert.True(t, open.IsActive(now))

	ended := Outage{EndTime: sql.NullTime{Time: now.Add(-time.Minute), Valid: true}}
	assert.False(t, ended.IsActive(now))

	scheduledEnd := Outage{EndTime: sql.NullTime{Time: now.Add(time.Hour), Valid: true}}
	assert.True(t, scheduledEnd.IsActive(now))
}
