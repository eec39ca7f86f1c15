package e2e

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ship-status-dash/pkg/types"
)

// These tests expect a dashboard started with a single "Prow" component whose sub-components
// are "Tide" and "Deck", backed by an empty outage table.
func TestE2E_Dashboard(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping e2e test in short mode")
	}

	// Get server port from environment variable
	serverPort := os.Getenv("TEST_SERVER_PORT")
	if serverPort == "" {
		serverPort = "8888" // fallback to default
	}

	serverURL := "http://localhost:" + serverPort

	t.Run("Health", testHealth(serverURL))
	t.Run("Components", testComponents(serverURL))
	t.Run("SubComponentStatus", testSubComponentStatus(serverURL))
	t.Run("ComponentStatus", testComponentStatus(serverURL))
	t.Run("Snapshot", testSnapshot(serverURL))
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func testHealth(serverURL string) func(*testing.T) {
	return func(t *testing.T) {
		var health map[string]interface{}
		require.Equal(t, http.StatusOK, getJSON(t, serverURL+"/health", &health))
		assert.Equal(t, "ok", health["status"])
		assert.NotEmpty(t, health["time"])
	}
}

func testComponents(serverURL string) func(*testing.T) {
	return func(t *testing.T) {
		var components []types.Component
		require.Equal(t, http.StatusOK, getJSON(t, serverURL+"/api/components", &components))

		require.Len(t, components, 1)
		assert.Equal(t, "Prow", components[0].Name)
		require.Len(t, components[0].Subcomponents, 2)
		assert.Equal(t, "Tide", components[0].Subcomponents[0].Name)
		assert.Equal(t, "Deck", components[0].Subcomponents[1].Name)
	}
}

func testSubComponentStatus(serverURL string) func(*testing.T) {
	return func(t *testing.T) {
		var result types.ComponentStatus
		require.Equal(t, http.StatusOK, getJSON(t, serverURL+"/api/status/Prow/Tide", &result))
		assert.Equal(t, types.StatusHealthy, result.Status)
		assert.Empty(t, result.ActiveOutages)

		var ignored types.ComponentStatus
		assert.Equal(t, http.StatusNotFound, getJSON(t, serverURL+"/api/status/Prow/NonExistent", &ignored))
	}
}

func testComponentStatus(serverURL string) func(*testing.T) {
	return func(t *testing.T) {
		var result types.ComponentStatus
		require.Equal(t, http.StatusOK, getJSON(t, serverURL+"/api/status/Prow", &result))
		assert.Equal(t, types.StatusHealthy, result.Status)

		var all []types.ComponentStatus
		require.Equal(t, http.StatusOK, getJSON(t, serverURL+"/api/status", &all))
		assert.Len(t, all, 1)
	}
}

func testSnapshot(serverURL string) func(*testing.T) {
	return func(t *testing.T) {
		resp, err := http.Post(serverURL+"/api/snapshot/refresh", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		type snapshot struct {
			GeneratedAt time.Time `json:"generated_at"`
			Components  []struct {
				Name          string `json:"name"`
				Status        string `json:"status"`
				SubComponents []struct {
					Name   string `json:"name"`
					Status string `json:"status"`
				} `json:"sub_components"`
			} `json:"components"`
		}

		var result snapshot
		require.Eventually(t, func() bool {
			return getJSON(t, serverURL+"/api/snapshot", &result) == http.StatusOK
		}, 30*time.Second, 500*time.Millisecond)

		require.Len(t, result.Components, 1)
		assert.Equal(t, "Prow", result.Components[0].Name)
		assert.Equal(t, "Healthy", result.Components[0].Status)
		require.Len(t, result.Components[0].SubComponents, 2)
		assert.Equal(t, "Tide", result.Components[0].SubComponents[0].Name)
		assert.Equal(t, "Deck", result.Components[0].SubComponents[1].Name)
		assert.False(t, result.GeneratedAt.IsZero())
	}
}
