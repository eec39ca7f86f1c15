package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ship-status-dash/pkg/types"
)

type fakeQuerier struct {
	results map[string]model.Value
	errs    map[string]error
}

func (f *fakeQuerier) Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error) {
	if err, ok := f.errs[query]; ok {
		return nil, nil, err
	}
	if result, ok := f.results[query]; ok {
		return result, v1.Warnings{"partial data"}, nil
	}
	return model.Vector{}, nil, nil
}

func TestPrometheusSource(t *testing.T) {
	firing := model.Vector{&model.Sample{Metric: model.Metric{"job": "deck"}, Value: 1}}
	querier := &fakeQuerier{
		results: map[string]model.Value{
			`absent(up{job="deck"} == 1)`: firing,
			`tide_sync_lag > 600`:         model.Vector{},
			`hook_errors`:                 &model.Scalar{Value: 0},
			`hook_latency`:                &model.Scalar{Value: 3},
			`weird`:                       &model.String{Value: "x"},
		},
		errs: map[string]error{
			`crier_up`: errors.New("prometheus unavailable"),
		},
	}
	probes := []Probe{
		{Component: "Prow", SubComponent: "Deck", Query: `absent(up{job="deck"} == 1)`, Severity: types.SeverityDown},
		{Component: "Prow", SubComponent: "Tide", Query: `tide_sync_lag > 600`, Severity: types.SeverityDegraded},
		{Component: "Prow", SubComponent: "Hook", Query: `hook_errors`, Severity: types.SeverityDown},
		{Component: "Prow", SubComponent: "Hook", Query: `hook_latency`, Severity: types.SeveritySuspected},
		{Component: "CI", SubComponent: "Crier", Query: `crier_up`, Severity: types.SeverityDown},
		{Component: "Odd", SubComponent: "Weird", Query: `weird`, Severity: types.SeverityDown},
	}
	logger, _ := test.NewNullLogger()
	source, err := NewPrometheusSource(querier, probes, logger)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name         string
		subComponent string
		expected     types.Status
	}{
		{name: "firing vector", subComponent: "Deck", expected: types.StatusDown},
		{name: "empty vector", subComponent: "Tide", expected: types.StatusHealthy},
		{name: "non-zero scalar fires", subComponent: "Hook", expected: types.StatusSuspected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := source.GetSubComponentStatus(ctx, "Prow", tt.subComponent)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Status)
			assert.Empty(t, result.ActiveOutages)
		})
	}

	t.Run("component rolls up", func(t *testing.T) {
		result, err := source.GetComponentStatus(ctx, "Prow")
		require.NoError(t, err)
		assert.Equal(t, types.StatusPartial, result.Status)
	})

	t.Run("query error", func(t *testing.T) {
		_, err := source.GetSubComponentStatus(ctx, "CI", "Crier")
		assert.ErrorContains(t, err, "prometheus unavailable")
		_, err = source.GetComponentStatus(ctx, "CI")
		assert.Error(t, err)
	})

	t.Run("unexpected result type", func(t *testing.T) {
		_, err := source.GetSubComponentStatus(ctx, "Odd", "Weird")
		assert.ErrorIs(t, err, ErrUnexpectedResponse)
	})

	t.Run("no probes", func(t *testing.T) {
		_, err := source.GetSubComponentStatus(ctx, "Prow", "Sinker")
		assert.ErrorIs(t, err, ErrNoProbes)
		_, err = source.GetComponentStatus(ctx, "Nope")
		assert.ErrorIs(t, err, ErrNoProbes)
	})
}

func TestProbe_Validate(t *testing.T) {
	assert.NoError(t, Probe{Component: "Prow", SubComponent: "Deck", Query: "up", Severity: types.SeverityDown}.Validate())
	assert.Error(t, Probe{Component: "Prow", Query: "up", Severity: types.SeverityDown}.Validate())
	assert.Error(t, Probe{Component: "Prow", SubComponent: "Deck", Severity: types.SeverityDown}.Validate())
	assert.Error(t, Probe{Component: "Prow", SubComponent: "Deck", Query: "up", Severity: "Partial"}.Validate())

	_, err := NewPrometheusSource(&fakeQuerier{}, []Probe{{Component: "Prow"}}, nil)
	assert.Error(t, err)
}

func TestNewPrometheusClient_BearerToken(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer server.Close()

	client, err := NewPrometheusClient(server.URL, "s3cret")
	require.NoError(t, err)

	result, _, err := client.Query(context.Background(), "up", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ValVector, result.Type())
	assert.Equal(t, "Bearer s3cret", authorization)
}
