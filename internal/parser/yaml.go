package parser

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/harrison/coordinator/internal/models"
)

// YAMLParser parses plans whose YAML structure mirrors models.CoordinationPlan.
type YAMLParser struct{}

// NewYAMLParser creates a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse implements Parser. Unknown keys are rejected so that typos such as
// "dependancies" fail loudly instead of silently dropping a dependency.
func (p *YAMLParser) Parse(r io.Reader) (*models.CoordinationPlan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var plan models.CoordinationPlan
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty plan")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &plan, nil
}
