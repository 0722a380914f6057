package config

import (
	"encoding/json"
	"os"

	"github.com/adrg/xdg"
)

// Config holds runtime configuration for the tracking engine and app behavior.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Auto-tracking parameters
	SearchMargin        int     `json:"search_margin"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	SeekTimeoutSeconds  int     `json:"seek_timeout_seconds"`
	LoadTimeoutSeconds  int     `json:"load_timeout_seconds"`

	// Minimum side of a drag selection accepted as a tracking region.
	MinSelectionPx int `json:"min_selection_px"`

	// Preview pane dimensions
	PreviewW int `json:"preview_w"`
	PreviewH int `json:"preview_h"`

	// Last opened video, restored on startup when it still exists.
	LastVideo string `json:"last_video"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:               false,
		SearchMargin:        20,
		ConfidenceThreshold: 0.5,
		SeekTimeoutSeconds:  5,
		LoadTimeoutSeconds:  10,
		MinSelectionPx:      5,
		PreviewW:            640,
		PreviewH:            360,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.SearchMargin <= 0 {
		c.SearchMargin = 20
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		c.ConfidenceThreshold = 0.5
	}
	if c.SeekTimeoutSeconds <= 0 {
		c.SeekTimeoutSeconds = 5
	}
	if c.LoadTimeoutSeconds <= 0 {
		c.LoadTimeoutSeconds = 10
	}
	if c.MinSelectionPx < 1 {
		c.MinSelectionPx = 5
	}
	if c.PreviewW < 100 {
		c.PreviewW = 640
	}
	if c.PreviewH < 100 {
		c.PreviewH = 360
	}
	return nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	p, err := xdg.ConfigFile("gotrack/config.json")
	if err != nil {
		return "config.json"
	}
	return p
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
