package report

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats for Encode.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (string, error) {
	switch s {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return s, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Encode writes the summary to w in the given format.
func Encode(w io.Writer, s *Summary, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("closing yaml encoder: %w", err)
		}
	case FormatMarkdown:
		if _, err := io.WriteString(w, Markdown(s)); err != nil {
			return fmt.Errorf("writing markdown: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	return nil
}
