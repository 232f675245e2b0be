// Package planfile reads and writes content plans as YAML or JSON files.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilupskalvis/folio/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are not YAML or JSON.
var ErrUnsupportedFormat = errors.New("unsupported plan file format")

// Load reads a plan file. The format is chosen by extension (.yaml, .yml
// or .json); JSON is parsed as the YAML subset it is.
func Load(path string) (*models.ContentPlan, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan, rejecting unknown fields. ID, status and timestamps
// are never taken from the file; the ledger assigns them.
func Parse(data []byte) (*models.ContentPlan, error) {
	var plan models.ContentPlan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse plan: empty document")
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if strings.TrimSpace(plan.Title) == "" {
		return nil, fmt.Errorf("invalid plan: title is required")
	}
	for i, a := range plan.Actions {
		if a.Kind == "" {
			return nil, fmt.Errorf("invalid plan: action %d has no kind", i)
		}
		if a.Resource == "" {
			return nil, fmt.Errorf("invalid plan: action %d has no resource", i)
		}
	}

	plan.ID = ""
	plan.Status = ""
	return &plan, nil
}

// Encode writes plan as YAML.
func Encode(w io.Writer, plan *models.ContentPlan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
