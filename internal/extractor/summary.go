package extractor

import (
	"fmt"

	"github.com/telhawk-systems/fmc-connections/internal/fmc"
	"github.com/telhawk-systems/fmc-connections/internal/models"
	"github.com/telhawk-systems/fmc-connections/pkg/output"
)

// Summary describes a completed extraction.
type Summary struct {
	RunID       string                 `json:"run_id" yaml:"run_id"`
	Host        string                 `json:"host" yaml:"host"`
	HoursBack   int                    `json:"hours_back" yaml:"hours_back"`
	Limit       int                    `json:"limit" yaml:"limit"`
	Window      fmc.TimeWindow         `json:"window" yaml:"window"`
	Source      string                 `json:"source" yaml:"source"`
	Endpoint    string                 `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	TotalEvents int                    `json:"total_events" yaml:"total_events"`
	OutputFile  string                 `json:"output_file" yaml:"output_file"`
	Preview     []models.ConnectionRow `json:"preview" yaml:"preview"`
}

// Render prints the summary as text, json or yaml.
func (s *Summary) Render(p *output.Printer, format string) error {
	switch format {
	case "json":
		return p.JSON(s)
	case "yaml":
		return p.YAML(s)
	case "", "text":
		p.Plain("")
		p.Heading("Summary")
		p.Plain("Total events processed: %d", s.TotalEvents)
		p.Plain("Output file: %s", s.OutputFile)
		if s.Source == string(fmc.SourceSample) {
			p.Warn("Source: built-in sample data, not retrieved from %s", s.Host)
		}
		if len(s.Preview) > 0 {
			p.Plain("\nSample data (first %d rows):", previewRows)
			for i, row := range s.Preview {
				p.Plain("%d. %s", i+1, row)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown summary format %q", format)
	}
}
