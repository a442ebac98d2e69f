package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/coordinator/internal/models"
)

// JSONParser parses plans submitted as JSON, the shape workflow engines post.
type JSONParser struct{}

// NewJSONParser creates a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse implements Parser.
func (p *JSONParser) Parse(r io.Reader) (*models.CoordinationPlan, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var plan models.CoordinationPlan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &plan, nil
}
