package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/exportengine/engine/internal/model"
)

// ConfigStore is the in-memory ConfigProvider the engine dispatches
// against. Export Configurations are owned by an external system (spec §3
// "the engine never mutates configurations"); this store is the engine's
// read-only cache of that data, loaded once from a JSON file at startup and
// reloadable on demand — there is no live-reload loop, since the engine has
// no standing relationship with whatever system edits configurations.
type ConfigStore struct {
	mu   sync.RWMutex
	byID map[string]model.ExportConfiguration
}

// configFileEntry mirrors model.ExportConfiguration for JSON decoding: JSON
// object keys must be strings, so BooleanLabels is staged through
// true/false string keys and converted after decode.
type configFileEntry struct {
	ID              string                    `json:"id"`
	TenantID        string                    `json:"tenantId"`
	DatasetID       string                    `json:"datasetId"`
	SelectedFields  []string                  `json:"selectedFields"`
	Filters         map[string]any            `json:"filters"`
	CustomHeaders   map[string]string         `json:"customHeaders"`
	CustomFields    map[string]model.CustomField `json:"customFields"`
	Currency        model.CurrencyConversion  `json:"currency"`
	ScheduleMinutes int                       `json:"scheduleMinutes"`
	Destination     string                    `json:"destination"`
	WriteMode       model.WriteMode           `json:"writeMode"`
	Description     string                    `json:"description"`
	CreatedBy       string                    `json:"createdBy"`
	BooleanLabels   map[string]string         `json:"booleanLabels"`
}

func (e configFileEntry) toModel() model.ExportConfiguration {
	cfg := model.ExportConfiguration{
		ID:              e.ID,
		TenantID:        e.TenantID,
		DatasetID:       e.DatasetID,
		SelectedFields:  e.SelectedFields,
		Filters:         e.Filters,
		CustomHeaders:   e.CustomHeaders,
		CustomFields:    e.CustomFields,
		Currency:        e.Currency,
		ScheduleMinutes: e.ScheduleMinutes,
		Destination:     e.Destination,
		WriteMode:       e.WriteMode,
		Description:     e.Description,
		CreatedBy:       e.CreatedBy,
	}
	if len(e.BooleanLabels) > 0 {
		cfg.BooleanLabels = map[bool]string{
			true:  e.BooleanLabels["true"],
			false: e.BooleanLabels["false"],
		}
	}
	return cfg
}

// NewConfigStore constructs an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{byID: make(map[string]model.ExportConfiguration)}
}

// LoadFile replaces the store's contents with the configurations decoded
// from a JSON array at path. A missing path is tolerated (an empty store
// is valid — no configurations are dispatchable until one is created
// externally and the file is refreshed).
func (s *ConfigStore) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var entries []configFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	byID := make(map[string]model.ExportConfiguration, len(entries))
	for _, e := range entries {
		byID[e.ID] = e.toModel()
	}

	s.mu.Lock()
	s.byID = byID
	s.mu.Unlock()
	return nil
}

// GetConfig implements dispatch.ConfigProvider.
func (s *ConfigStore) GetConfig(configID string) (model.ExportConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.byID[configID]
	return cfg, ok
}

// ListConfigs implements dispatch.ConfigProvider.
func (s *ConfigStore) ListConfigs() []model.ExportConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ExportConfiguration, 0, len(s.byID))
	for _, cfg := range s.byID {
		out = append(out, cfg)
	}
	return out
}
