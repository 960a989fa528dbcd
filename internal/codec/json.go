package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"identigraph/internal/domain"
	"identigraph/internal/service"
)

// JSONCodec handles JSON seeds and reports
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads {"seeds": ["ethereum:0x...", ...]}
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Target, error) {
	var file seedFile
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return parseSeeds(file.Seeds)
}

// Export writes the report as indented JSON
func (c *JSONCodec) Export(report *service.CrawlReport, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
