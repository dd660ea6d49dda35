package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/poiesic/repoingest/core"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q: must be json or yaml", format)
	}
}

// writeReport encodes report to w in the given format.
func writeReport(w io.Writer, report *core.IngestionReport, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return checkFormat(format)
	}
}
