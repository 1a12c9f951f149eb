package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetSquare  = "square"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLegacy:  LegacyConfig(),
		Preset720p:    HD720Config(),
		Preset1080p:   HD1080Config(),
		PresetSquare:  SquareConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset720p,
		Preset1080p,
		PresetSquare,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LegacyConfig returns a 640x480 stream with a small surface.
// Use this on slow links; smaller payloads reach the model faster.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.ViewportWidth = 320
	cfg.ViewportHeight = 240
	return cfg
}

// HD720Config returns a 720p surface.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.ViewportWidth = 1280
	cfg.ViewportHeight = 720
	return cfg
}

// HD1080Config returns a 1080p stream and surface.
// Best recognition on small or distant cards, larger requests.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.ViewportWidth = 1920
	cfg.ViewportHeight = 1080
	return cfg
}

// SquareConfig returns a 512x512 surface, the shape of a phone held upright
// over a card.
func SquareConfig() Config {
	cfg := DefaultConfig()
	cfg.ViewportWidth = 512
	cfg.ViewportHeight = 512
	return cfg
}
