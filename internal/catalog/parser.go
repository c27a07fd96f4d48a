package catalog

import (
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
)

type document struct {
	Eclipses []yaml.Node `yaml:"eclipses"`
}

// Parse reads a YAML catalog document from r. Records that fail to decode
// or validate are skipped with a warning log; only a malformed document is
// an error.
func Parse(r io.Reader, logger *slog.Logger) ([]Eclipse, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Eclipses))
	eclipses := make([]Eclipse, 0, len(doc.Eclipses))
	for i := range doc.Eclipses {
		node := &doc.Eclipses[i]
		var e Eclipse
		if err := node.Decode(&e); err != nil {
			logger.Warn("skipping undecodable catalog entry", "line", node.Line, "error", err)
			continue
		}
		if err := e.Validate(); err != nil {
			logger.Warn("skipping invalid catalog entry", "id", e.ID, "line", node.Line, "error", err)
			continue
		}
		if seen[e.ID] {
			logger.Warn("skipping duplicate catalog entry", "id", e.ID, "line", node.Line)
			continue
		}
		seen[e.ID] = true
		eclipses = append(eclipses, e)
	}

	return eclipses, nil
}
