package triage

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// DefaultConfig returns the document served before anything has been saved.
func DefaultConfig() *Config {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		panic(fmt.Sprintf("triage: embedded default config: %v", err))
	}
	cfg.normalize()
	return &cfg
}
