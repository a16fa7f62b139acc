package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatDomains formats a domain listing as a JSON array.
func (f *JSONFormatter) FormatDomains(rows []DomainRow) (string, error) {
	if len(rows) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal domains to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatReport formats a host resource report as JSON.
func (f *JSONFormatter) FormatReport(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
