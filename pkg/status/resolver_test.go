package status_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/status"
	"ship-status-dash/pkg/status/statustest"
	"ship-status-dash/pkg/types"
)

func TestResolver_Resolve(t *testing.T) {
	outage := types.Outage{ComponentName: "Tide", Severity: types.SeverityDegraded, StartTime: time.Unix(1700000000, 0).UTC()}

	source := statustest.NewSource().
		SetComponent("Prow", statustest.Response{Status: types.StatusPartial}).
		SetSubComponent("Prow", "Tide", statustest.Response{Status: types.StatusDegraded, Outages: []types.Outage{outage}}).
		SetSubComponent("Prow", "Deck", statustest.Response{Err: errors.New("connection refused")}).
		SetSubComponent("Prow", "Hook", statustest.Response{Hang: true}).
		SetSubComponent("Prow", "Crier", statustest.Response{Status: "Sideways"}).
		SetSubComponent("Prow", "Sinker", statustest.Response{Delay: time.Second, IgnoreContext: true, Status: types.StatusHealthy})

	tests := []struct {
		name     string
		target   status.Target
		fallback types.Status
		expected status.Resolution
	}{
		{
			name:     "component success",
			target:   status.ComponentTarget("Prow"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusPartial, ActiveOutages: []types.Outage{}},
		},
		{
			name:     "sub-component success passes outages through",
			target:   status.SubComponentTarget("Prow", "Tide"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusDegraded, ActiveOutages: []types.Outage{outage}},
		},
		{
			name:     "source error",
			target:   status.SubComponentTarget("Prow", "Deck"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusUnknown, ActiveOutages: []types.Outage{}, Fallback: true},
		},
		{
			name:     "timeout",
			target:   status.SubComponentTarget("Prow", "Hook"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusUnknown, ActiveOutages: []types.Outage{}, Fallback: true},
		},
		{
			name:     "source ignoring its context still times out",
			target:   status.SubComponentTarget("Prow", "Sinker"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusUnknown, ActiveOutages: []types.Outage{}, Fallback: true},
		},
		{
			name:     "malformed status",
			target:   status.SubComponentTarget("Prow", "Crier"),
			fallback: types.StatusUnknown,
			expected: status.Resolution{Status: types.StatusUnknown, ActiveOutages: []types.Outage{}, Fallback: true},
		},
		{
			name:     "unknown component uses caller fallback",
			target:   status.ComponentTarget("Build Farm"),
			fallback: types.StatusHealthy,
			expected: status.Resolution{Status: types.StatusHealthy, ActiveOutages: []types.Outage{}, Fallback: true},
		},
	}

	logger, _ := test.NewNullLogger()
	resolver := status.NewResolver(source, 50*time.Millisecond, logger, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			result := resolver.Resolve(context.Background(), tt.target, tt.fallback)
			assert.Equal(t, tt.expected, result)
			assert.Less(t, time.Since(start), 500*time.Millisecond)
		})
	}
}

func TestResolver_CallsSourceExactlyOnce(t *testing.T) {
	source := statustest.NewSource().
		SetSubComponent("Prow", "Tide", statustest.Response{Err: errors.New("boom")})
	logger, _ := test.NewNullLogger()
	resolver := status.NewResolver(source, time.Second, logger, nil)

	resolver.Resolve(context.Background(), status.SubComponentTarget("Prow", "Tide"), types.StatusUnknown)

	assert.Equal(t, 1, source.Calls(status.SubComponentTarget("Prow", "Tide")))
	assert.Equal(t, 1, source.TotalCalls())
}

func TestResolver_LogsAndCountsFallbacks(t *testing.T) {
	source := statustest.NewSource().
		SetComponent("Prow", statustest.Response{Status: types.StatusHealthy}).
		SetSubComponent("Prow", "Tide", statustest.Response{Err: errors.New("boom")})
	logger, hook := test.NewNullLogger()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	resolver := status.NewResolver(source, time.Second, logger, m)

	resolver.Resolve(context.Background(), status.ComponentTarget("Prow"), types.StatusUnknown)
	resolver.Resolve(context.Background(), status.SubComponentTarget("Prow", "Tide"), types.StatusUnknown)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Prow", entry.Data["component"])
	assert.Equal(t, "Tide", entry.Data["sub_component"])
	assert.Equal(t, types.StatusUnknown, entry.Data["fallback"])

	assert.Equal(t, 2, testutil.CollectAndCount(m.LookupCounter(), "ship_status_status_lookups_total"))
}

func TestResolver_CancelledPassIsNotAFallback(t *testing.T) {
	source := statustest.NewSource().
		SetSubComponent("Prow", "Tide", statustest.Response{Hang: true}).
		SetSubComponent("Prow", "Deck", statustest.Response{Hang: true})
	logger, hook := test.NewNullLogger()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	resolver := status.NewResolver(source, 10*time.Second, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan status.Resolution, 2)
	for _, name := range []string{"Tide", "Deck"} {
		go func() {
			done <- resolver.Resolve(ctx, status.SubComponentTarget("Prow", name), types.StatusUnknown)
		}()
	}
	for range 2 {
		result := <-done
		assert.True(t, result.Fallback)
		assert.Empty(t, result.ActiveOutages)
	}

	assert.Empty(t, hook.AllEntries())
	expected := `
# HELP ship_status_status_lookups_total Status lookups issued, by entity kind and result.
# TYPE ship_status_status_lookups_total counter
ship_status_status_lookups_total{kind="sub_component",result="cancelled"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(m.LookupCounter(), strings.NewReader(expected), "ship_status_status_lookups_total"))
}

func TestTarget(t *testing.T) {
	assert.Equal(t, "Prow", status.ComponentTarget("Prow").String())
	assert.False(t, status.ComponentTarget("Prow").IsSubComponent())
	assert.Equal(t, "Prow/Tide", status.SubComponentTarget("Prow", "Tide").String())
	assert.True(t, status.SubComponentTarget("Prow", "Tide").IsSubComponent())
}
