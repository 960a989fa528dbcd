// Package codec reads seed lists and writes crawl reports in JSON and YAML.
package codec

import (
	"fmt"
	"io"
	"strings"

	"identigraph/internal/domain"
	"identigraph/internal/service"
)

// Importer reads crawl seeds from various formats
type Importer interface {
	Parse(r io.Reader) ([]domain.Target, error)
	Format() string
}

// Exporter writes crawl reports to various formats
type Exporter interface {
	Export(report *service.CrawlReport, w io.Writer) error
	Format() string
}

// seedFile is the document shape shared by every seed format
type seedFile struct {
	Seeds []string `json:"seeds" yaml:"seeds"`
}

// ForFormat returns the exporter for a format name
func ForFormat(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// parseSeeds converts seed strings to targets, rejecting the first bad entry
func parseSeeds(raw []string) ([]domain.Target, error) {
	targets := make([]domain.Target, 0, len(raw))
	for i, s := range raw {
		t, err := domain.ParseTarget(s)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
