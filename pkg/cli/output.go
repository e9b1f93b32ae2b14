package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	// FormatRaw prints strings, byte slices and fmt.Stringers verbatim and
	// falls back to YAML for anything else.
	FormatRaw OutputFormat = "raw"
)

// ParseFormat validates a format name. Empty selects FormatYAML.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("cli: unsupported output format %q", s)
	}
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat

	// File receives the output instead of stdout.
	File string

	// Writer overrides File and stdout.
	Writer io.Writer
}

// Output prints result in the configured format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
		if opts.File != "" {
			f, err := os.Create(opts.File)
			if err != nil {
				return fmt.Errorf("cli: create output: %w", err)
			}
			defer f.Close()
			w = f
		}
	}

	switch opts.Format {
	case FormatYAML, "":
		return writeYAML(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatRaw:
		return writeRaw(w, result)
	default:
		return fmt.Errorf("cli: unsupported output format %q", opts.Format)
	}
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("cli: format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeRaw(w io.Writer, v any) error {
	var s string
	switch v := v.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		return writeYAML(w, v)
	}
	_, err := fmt.Fprintln(w, s)
	return err
}

// PrintSuccess prints a check-marked line to stderr.
func PrintSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

// PrintError prints an error line to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintWarning prints a warning line to stderr.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}
