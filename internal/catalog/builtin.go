package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"time"
)

// BuiltinSource names the dataset compiled into the binary.
const BuiltinSource = "builtin"

//go:embed builtin.yaml
var builtinYAML []byte

// Builtin returns the catalog compiled into the binary.
func Builtin(logger *slog.Logger) (*Dataset, error) {
	eclipses, err := Parse(bytes.NewReader(builtinYAML), logger)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return NewDataset(BuiltinSource, time.Time{}, eclipses), nil
}
