package fmc

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/fmc-connections/internal/models"
)

//go:embed sample_events.yaml
var sampleEventsYAML []byte

// SampleEvents returns a fresh copy of the built-in sample dataset.
func SampleEvents() ([]models.RawEvent, error) {
	var events []models.RawEvent
	if err := yaml.Unmarshal(sampleEventsYAML, &events); err != nil {
		return nil, fmt.Errorf("parse sample events: %w", err)
	}
	return events, nil
}
