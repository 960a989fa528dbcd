package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
	"identigraph/internal/service"
)

// YAMLCodec handles YAML seeds and reports
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlReport flattens targets to their keys for readability
type yamlReport struct {
	ID            string           `yaml:"id"`
	Seed          string           `yaml:"seed"`
	StartedAt     time.Time        `yaml:"started_at"`
	FinishedAt    time.Time        `yaml:"finished_at"`
	Rounds        int              `yaml:"rounds"`
	StopReason    string           `yaml:"stop_reason"`
	StorageErrors int              `yaml:"storage_errors"`
	Stats         repository.Stats `yaml:"stats"`
	Targets       []yamlTarget     `yaml:"targets"`
}

type yamlTarget struct {
	Target     string      `yaml:"target"`
	Round      int         `yaml:"round"`
	State      string      `yaml:"state"`
	Fetchers   []string    `yaml:"fetchers,omitempty"`
	Discovered int         `yaml:"discovered"`
	Errors     []yamlError `yaml:"errors,omitempty"`
}

type yamlError struct {
	Source  string `yaml:"source"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// Parse reads a "seeds:" list
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Target, error) {
	var file seedFile
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return parseSeeds(file.Seeds)
}

// Export writes the report as YAML
func (c *YAMLCodec) Export(report *service.CrawlReport, w io.Writer) error {
	yr := yamlReport{
		ID:            report.ID,
		Seed:          report.Seed.Key(),
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Rounds:        report.Rounds,
		StopReason:    string(report.StopReason),
		StorageErrors: report.StorageErrors,
		Stats:         report.Stats,
		Targets:       make([]yamlTarget, 0, len(report.Targets)),
	}

	for _, t := range report.Targets {
		yt := yamlTarget{
			Target:     t.Target.Key(),
			Round:      t.Round,
			State:      string(t.State),
			Discovered: t.Discovered,
		}
		for _, f := range t.Fetchers {
			yt.Fetchers = append(yt.Fetchers, string(f))
		}
		for _, e := range t.Errors {
			yt.Errors = append(yt.Errors, yamlError{
				Source:  string(e.Source),
				Kind:    string(e.Kind),
				Message: e.Message,
			})
		}
		yr.Targets = append(yr.Targets, yt)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&yr); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
