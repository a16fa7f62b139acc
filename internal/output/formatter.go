// Package output provides formatters for displaying warren resources
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/warren/internal/libvirt"
	"github.com/jbweber/warren/internal/loadavg"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative configs.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// DomainRow is one line of a domain listing.
type DomainRow struct {
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}

// Report is one host's resource snapshot prepared for display.
type Report struct {
	Host      string                 `json:"host" yaml:"host"`
	Load      *loadavg.Sample        `json:"load,omitempty" yaml:"load,omitempty"`
	Resources *libvirt.HostResources `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Formatter formats warren resources for output.
type Formatter interface {
	// FormatDomains formats a domain listing.
	FormatDomains(rows []DomainRow) (string, error)

	// FormatReport formats a host resource report.
	FormatReport(r *Report) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
