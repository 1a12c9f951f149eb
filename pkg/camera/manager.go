package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the current capture configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes (for applying to the running source)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager with the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// SetOnConfigChange replaces the change callback.
func (m *Manager) SetOnConfigChange(fn func(cfg Config) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OnConfigChange = fn
}

// GetConfig returns the current capture configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and replaces the capture configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, as decoded from a JSON body.
// A "preset" key replaces the base config before other fields apply.
// The read, merge and write happen under one lock so concurrent updates
// never lose each other's fields.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.mu.Lock()
	cfg, err := mergeParams(m.config, params)
	if err == nil {
		if problems := cfg.Validate(); len(problems) > 0 {
			err = fmt.Errorf("validation failed: %v", problems)
		}
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}
	return nil
}

func mergeParams(cfg Config, params map[string]interface{}) (Config, error) {
	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return cfg, fmt.Errorf("unknown preset: %s", presetName)
		}
		// Keep the devices; presets only describe the capture shape
		preset.RearDevice = cfg.RearDevice
		preset.FrontDevice = cfg.FrontDevice
		preset.FallbackToFront = cfg.FallbackToFront
		cfg = *preset
		delete(params, "preset")
	}

	for key, value := range params {
		switch key {
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "quality":
			if v, ok := toInt(value); ok {
				cfg.Quality = v
			}
		case "interval_ms":
			if v, ok := toInt(value); ok {
				cfg.IntervalMs = v
			}
		case "viewport_width":
			if v, ok := toInt(value); ok {
				cfg.ViewportWidth = v
			}
		case "viewport_height":
			if v, ok := toInt(value); ok {
				cfg.ViewportHeight = v
			}
		default:
			return cfg, fmt.Errorf("unknown or read-only field: %s", key)
		}
	}

	return cfg, nil
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]interface{}
	json.Unmarshal(data, &result)
	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
