package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ship-status-dash/pkg/aggregator"
	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/outages"
	"ship-status-dash/pkg/status"
	"ship-status-dash/pkg/types"
)

// OutageReader reads outage history.
type OutageReader interface {
	List(ctx context.Context, subComponentNames []string) ([]types.Outage, error)
	Get(ctx context.Context, subComponentName string, id uint) (*types.Outage, error)
}

// SnapshotPublisher exposes the latest aggregated snapshot and lets callers request a fresh one.
type SnapshotPublisher interface {
	Latest() (*aggregator.Snapshot, time.Time)
	Trigger()
}

// Handlers contains the HTTP request handlers for the dashboard API.
type Handlers struct {
	logger    *logrus.Logger
	catalog   catalog.Provider
	source    status.Source
	resolver  *status.Resolver
	fallback  types.Status
	outages   OutageReader
	snapshots SnapshotPublisher
}

// NewHandlers creates a new Handlers instance with the provided dependencies. The lookup timeout and
// default component status of opts apply to the all-components status endpoint; m may be nil.
func NewHandlers(logger *logrus.Logger, provider catalog.Provider, source status.Source, outageReader OutageReader, snapshots SnapshotPublisher, opts aggregator.Options, m *metrics.Metrics) *Handlers {
	return &Handlers{
		logger:    logger,
		catalog:   provider,
		source:    source,
		resolver:  status.NewResolver(source, opts.LookupTimeout, logger, m),
		fallback:  opts.DefaultComponentStatus,
		outages:   outageReader,
		snapshots: snapshots,
	}
}

// SnapshotResponse is the body of the snapshot endpoint.
type SnapshotResponse struct {
	GeneratedAt time.Time                      `json:"generated_at"`
	Components  []aggregator.ComponentSnapshot `json:"components"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// lookup resolves the component, and the sub-component when subComponentName is not empty,
// writing a 404 or 500 response and returning false when either is missing.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request, componentName, subComponentName string) (*types.Component, bool) {
	components, err := h.catalog.ListComponents(r.Context())
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list components")
		respondWithError(w, http.StatusInternalServerError, "Failed to list components")
		return nil, false
	}
	config := types.Config{Components: components}
	component := config.GetComponent(componentName)
	if component == nil {
		respondWithError(w, http.StatusNotFound, "Component not found")
		return nil, false
	}
	if subComponentName != "" && component.GetSubComponent(subComponentName) == nil {
		respondWithError(w, http.StatusNotFound, "Sub-component not found")
		return nil, false
	}
	return component, true
}

// HealthJSON returns the health status of the dashboard service.
func (h *Handlers) HealthJSON(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GetComponentsJSON returns the list of configured components.
func (h *Handlers) GetComponentsJSON(w http.ResponseWriter, r *http.Request) {
	components, err := h.catalog.ListComponents(r.Context())
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list components")
		respondWithError(w, http.StatusInternalServerError, "Failed to list components")
		return
	}
	respondWithJSON(w, http.StatusOK, components)
}

// GetComponentInfoJSON returns the configuration of a single component.
func (h *Handlers) GetComponentInfoJSON(w http.ResponseWriter, r *http.Request) {
	component, ok := h.lookup(w, r, mux.Vars(r)["componentName"], "")
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, component)
}

// GetAllComponentsStatusJSON returns the status of every configured component. Components are looked up
// concurrently, and one whose lookup fails is reported with the fallback status instead of failing the request.
func (h *Handlers) GetAllComponentsStatusJSON(w http.ResponseWriter, r *http.Request) {
	components, err := h.catalog.ListComponents(r.Context())
	if err != nil {
		h.logger.WithField("error", err).Error("Failed to list components")
		respondWithError(w, http.StatusInternalServerError, "Failed to list components")
		return
	}

	statuses := make([]types.ComponentStatus, len(components))
	var g errgroup.Group
	for i, component := range components {
		g.Go(func() error {
			result := h.resolver.Resolve(r.Context(), status.ComponentTarget(component.Name), h.fallback)
			statuses[i] = types.ComponentStatus{
				ComponentName: component.Name,
				Status:        result.Status,
				ActiveOutages: result.ActiveOutages,
			}
			return nil
		})
	}
	_ = g.Wait()

	respondWithJSON(w, http.StatusOK, statuses)
}

// GetComponentStatusJSON returns the status of a component rolled up from its sub-components.
func (h *Handlers) GetComponentStatusJSON(w http.ResponseWriter, r *http.Request) {
	componentName := mux.Vars(r)["componentName"]
	logger := h.logger.WithField("component", componentName)

	if _, ok := h.lookup(w, r, componentName, ""); !ok {
		return
	}

	componentStatus, err := h.source.GetComponentStatus(r.Context(), componentName)
	if err != nil {
		logger.WithField("error", err).Error("Failed to get component status")
		respondWithError(w, http.StatusInternalServerError, "Failed to get component status")
		return
	}
	respondWithJSON(w, http.StatusOK, componentStatus)
}

// GetSubComponentStatusJSON returns the status of a sub-component based on its active outages.
func (h *Handlers) GetSubComponentStatusJSON(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	componentName := vars["componentName"]
	subComponentName := vars["subComponentName"]

	logger := h.logger.WithFields(logrus.Fields{
		"component":     componentName,
		"sub_component": subComponentName,
	})

	if _, ok := h.lookup(w, r, componentName, subComponentName); !ok {
		return
	}

	subComponentStatus, err := h.source.GetSubComponentStatus(r.Context(), componentName, subComponentName)
	if err != nil {
		logger.WithField("error", err).Error("Failed to get sub-component status")
		respondWithError(w, http.StatusInternalServerError, "Failed to get sub-component status")
		return
	}

	logger.WithField("status", subComponentStatus.Status).Debug("Successfully retrieved sub-component status")
	respondWithJSON(w, http.StatusOK, subComponentStatus)
}

// GetOutagesJSON retrieves outages for all sub-components of a component.
func (h *Handlers) GetOutagesJSON(w http.ResponseWriter, r *http.Request) {
	componentName := mux.Vars(r)["componentName"]
	logger := h.logger.WithField("component", componentName)

	component, ok := h.lookup(w, r, componentName, "")
	if !ok {
		return
	}
	subComponents := make([]string, 0, len(component.Subcomponents))
	for _, subComponent := range component.Subcomponents {
		subComponents = append(subComponents, subComponent.Name)
	}

	result, err := h.outages.List(r.Context(), subComponents)
	if err != nil {
		logger.WithField("error", err).Error("Failed to query outages from database")
		respondWithError(w, http.StatusInternalServerError, "Failed to get outages")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetSubComponentOutagesJSON retrieves outages for a specific sub-component.
func (h *Handlers) GetSubComponentOutagesJSON(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	componentName := vars["componentName"]
	subComponentName := vars["subComponentName"]

	logger := h.logger.WithFields(logrus.Fields{
		"component":     componentName,
		"sub_component": subComponentName,
	})

	if _, ok := h.lookup(w, r, componentName, subComponentName); !ok {
		return
	}

	result, err := h.outages.List(r.Context(), []string{subComponentName})
	if err != nil {
		logger.WithField("error", err).Error("Failed to query outages from database")
		respondWithError(w, http.StatusInternalServerError, "Failed to get outages")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetOutageJSON retrieves a specific outage by ID for a specific sub-component.
func (h *Handlers) GetOutageJSON(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	componentName := vars["componentName"]
	subComponentName := vars["subComponentName"]

	logger := h.logger.WithFields(logrus.Fields{
		"component":     componentName,
		"sub_component": subComponentName,
		"outage_id":     vars["outageId"],
	})

	outageID, err := strconv.ParseUint(vars["outageId"], 10, 32)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid outage ID")
		return
	}

	if _, ok := h.lookup(w, r, componentName, subComponentName); !ok {
		return
	}

	outage, err := h.outages.Get(r.Context(), subComponentName, uint(outageID))
	if err != nil {
		if errors.Is(err, outages.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Outage not found")
			return
		}
		logger.WithField("error", err).Error("Failed to query outage from database")
		respondWithError(w, http.StatusInternalServerError, "Failed to get outage")
		return
	}
	respondWithJSON(w, http.StatusOK, outage)
}

// GetSnapshotJSON returns the most recent aggregated snapshot of every component and sub-component.
func (h *Handlers) GetSnapshotJSON(w http.ResponseWriter, r *http.Request) {
	snapshot, generatedAt := h.snapshots.Latest()
	if snapshot == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Snapshot not yet available")
		return
	}
	respondWithJSON(w, http.StatusOK, SnapshotResponse{
		GeneratedAt: generatedAt.UTC(),
		Components:  snapshot.Components,
	})
}

// RefreshSnapshot requests an immediate aggregation pass.
func (h *Handlers) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	h.snapshots.Trigger()
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"status": "refresh scheduled",
	})
}
